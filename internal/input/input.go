// Package input sends synthetic mouse and keyboard events to the focused client.
package input

import (
	"log/slog"
)

type MouseButton string

const (
	LeftButton  MouseButton = "left"
	RightButton MouseButton = "right"
)

// Sink injects input. Coordinates are absolute screen pixels.
type Sink interface {
	MoveTo(x, y int) error
	Click(x, y int, button MouseButton) error
	KeyTap(key string) error
	KeyDown(key string) error
	KeyUp(key string) error
}

// Null discards all input. It is used when no input backend is available.
type Null struct {
	Logger *slog.Logger
}

func (n Null) MoveTo(x, y int) error {
	n.log("move", slog.Int("x", x), slog.Int("y", y))
	return nil
}

func (n Null) Click(x, y int, button MouseButton) error {
	n.log("click", slog.Int("x", x), slog.Int("y", y), slog.String("button", string(button)))
	return nil
}

func (n Null) KeyTap(key string) error {
	n.log("key tap", slog.String("key", key))
	return nil
}

func (n Null) KeyDown(key string) error {
	n.log("key down", slog.String("key", key))
	return nil
}

func (n Null) KeyUp(key string) error {
	n.log("key up", slog.String("key", key))
	return nil
}

func (n Null) log(action string, attrs ...any) {
	if n.Logger != nil {
		n.Logger.Debug("Simulated input: "+action, attrs...)
	}
}
