// Package cv is the OpenCV backed correlator used in production builds.
package cv

import (
	"errors"
	"fmt"
	"image"

	"github.com/darkepoch/mubot/internal/vision"
	"gocv.io/x/gocv"
)

// Correlator runs TM_CCOEFF_NORMED through OpenCV on grayscale copies of the
// frame and the template.
type Correlator struct{}

func New() *Correlator {
	return &Correlator{}
}

func (c *Correlator) Correlate(frame, tmpl image.Image) (vision.ScoreMap, error) {
	src, err := toGray(frame)
	if err != nil {
		return vision.ScoreMap{}, fmt.Errorf("frame conversion: %w", err)
	}
	defer src.Close()

	tpl, err := toGray(tmpl)
	if err != nil {
		return vision.ScoreMap{}, fmt.Errorf("template conversion: %w", err)
	}
	defer tpl.Close()

	if tpl.Cols() > src.Cols() || tpl.Rows() > src.Rows() {
		return vision.ScoreMap{}, vision.ErrTemplateTooLarge
	}

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(src, tpl, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		return vision.ScoreMap{}, errors.New("template matching produced no result")
	}

	rows, cols := result.Rows(), result.Cols()
	scores := make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			scores[y*cols+x] = float64(result.GetFloatAt(y, x))
		}
	}

	return vision.ScoreMap{Width: cols, Height: rows, Scores: scores}, nil
}

func toGray(img image.Image) (gocv.Mat, error) {
	rgb, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer rgb.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(rgb, &gray, gocv.ColorRGBToGray)
	return gray, nil
}
