// Package vision locates reference templates on captured frames using
// normalized cross-correlation.
package vision

import (
	"errors"
	"image"

	"github.com/darkepoch/mubot/internal/utils"
)

var ErrCaptureUnavailable = errors.New("screen capture unavailable")

// MatchResult is the center of a template match and its correlation score.
type MatchResult struct {
	utils.Position
	Score float64
}

// ScreenSource captures the current screen.
type ScreenSource interface {
	Capture() (image.Image, error)
}

// NullSource is used when no capture backend is available.
type NullSource struct{}

func (NullSource) Capture() (image.Image, error) {
	return nil, ErrCaptureUnavailable
}

// Correlator produces a TM_CCOEFF_NORMED score map of tmpl over frame.
type Correlator interface {
	Correlate(frame, tmpl image.Image) (ScoreMap, error)
}

// HealthReader reads the character health percentage from a frame.
type HealthReader interface {
	HealthPercent(frame image.Image) (int, bool)
}
