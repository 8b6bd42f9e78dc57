// Package robot implements screen capture and input injection with robotgo.
package robot

import (
	"errors"
	"image"

	"github.com/darkepoch/mubot/internal/input"
	"github.com/darkepoch/mubot/internal/utils"
	"github.com/go-vgo/robotgo"
)

const clickHoldMs = 60

// Robot drives the real mouse and keyboard and captures the primary screen.
type Robot struct{}

func New() *Robot {
	return &Robot{}
}

func (r *Robot) Capture() (image.Image, error) {
	bitmap := robotgo.CaptureScreen()
	if bitmap == nil {
		return nil, errors.New("robotgo returned an empty bitmap")
	}
	defer robotgo.FreeBitmap(bitmap)

	img := robotgo.ToImage(bitmap)
	if img == nil {
		return nil, errors.New("could not convert captured bitmap")
	}
	return img, nil
}

func (r *Robot) MoveTo(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

// Click moves to the target and waits a short human-like pause before clicking.
func (r *Robot) Click(x, y int, button input.MouseButton) error {
	robotgo.Move(x, y)
	utils.Sleep(clickHoldMs)
	robotgo.Click(string(button))
	return nil
}

func (r *Robot) KeyTap(key string) error {
	return robotgo.KeyTap(key)
}

func (r *Robot) KeyDown(key string) error {
	return robotgo.KeyToggle(key, "down")
}

func (r *Robot) KeyUp(key string) error {
	return robotgo.KeyToggle(key, "up")
}
