// Package ocr reads the health counter of the character with Tesseract.
package ocr

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"

	"github.com/darkepoch/mubot/internal/vision"
	"github.com/nfnt/resize"
	"github.com/otiai10/gosseract"
)

const upscale = 3

// HealthReader crops a fixed screen region, upscales it and runs it through
// Tesseract in single line mode.
type HealthReader struct {
	region image.Rectangle
	logger *slog.Logger
}

func NewHealthReader(region image.Rectangle, logger *slog.Logger) *HealthReader {
	return &HealthReader{region: region, logger: logger}
}

func (h *HealthReader) HealthPercent(frame image.Image) (int, bool) {
	text, err := h.read(frame)
	if err != nil {
		h.logger.Debug("Health OCR failed", slog.Any("error", err))
		return 0, false
	}

	pct, ok := vision.ParseHealthText(text)
	if !ok {
		h.logger.Debug("Health OCR text not recognized", slog.String("text", text))
	}
	return pct, ok
}

func (h *HealthReader) read(frame image.Image) (string, error) {
	si, ok := frame.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return "", fmt.Errorf("frame of type %T cannot be cropped", frame)
	}
	region := h.region.Add(frame.Bounds().Min).Intersect(frame.Bounds())
	if region.Empty() {
		return "", fmt.Errorf("health region %v outside of frame", h.region)
	}

	crop := si.SubImage(region)
	scaled := resize.Resize(uint(region.Dx()*upscale), uint(region.Dy()*upscale), crop, resize.Bicubic)

	tmp, err := os.CreateTemp("", "health_*.png")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err = png.Encode(tmp, scaled); err != nil {
		tmp.Close()
		return "", err
	}
	tmp.Close()

	client := gosseract.NewClient()
	defer client.Close()

	if err = client.SetImage(tmpName); err != nil {
		return "", err
	}
	if err = client.SetWhitelist("0123456789/%"); err != nil {
		return "", err
	}
	if err = client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return "", err
	}

	return client.Text()
}
