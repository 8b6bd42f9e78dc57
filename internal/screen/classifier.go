// Package screen classifies a captured frame into one of the known screens.
package screen

import (
	"image"
	"log/slog"

	"github.com/darkepoch/mubot/internal/vision"
)

type State int

const (
	Unknown State = iota
	Login
	MainMenu
	InGame
)

func (s State) String() string {
	switch s {
	case Login:
		return "login"
	case MainMenu:
		return "main_menu"
	case InGame:
		return "in_game"
	default:
		return "unknown"
	}
}

const (
	LoginButton     = "login_button"
	PlayButton      = "play_button"
	HealthBar       = "health_bar"
	Minimap         = "minimap"
	InventoryButton = "inventory_button"
	CharacterButton = "character_button"
)

// in-game markers other than the health bar, any of them is enough.
var inGameMarkers = []string{Minimap, InventoryButton, CharacterButton}

// Finder is the subset of the matcher the classifier needs.
type Finder interface {
	Frame() (image.Image, error)
	FindOne(name string, opts ...vision.Option) (vision.MatchResult, bool)
}

// Classifier has no memory, every call classifies from scratch.
type Classifier struct {
	finder Finder
	logger *slog.Logger
}

func NewClassifier(finder Finder, logger *slog.Logger) *Classifier {
	return &Classifier{finder: finder, logger: logger}
}

// Classify grabs the current frame and classifies it.
func (c *Classifier) Classify() State {
	frame, err := c.finder.Frame()
	if err != nil {
		c.logger.Warn("Could not capture frame for classification", slog.Any("error", err))
		return Unknown
	}
	return c.ClassifyFrame(frame)
}

// ClassifyFrame applies login, menu, in-game in that order, first hit wins.
func (c *Classifier) ClassifyFrame(frame image.Image) State {
	found := func(name string) bool {
		_, ok := c.finder.FindOne(name, vision.WithFrame(frame))
		return ok
	}

	switch {
	case found(LoginButton):
		return Login
	case found(PlayButton):
		return MainMenu
	case found(HealthBar):
		return InGame
	}
	for _, marker := range inGameMarkers {
		if found(marker) {
			return InGame
		}
	}

	return Unknown
}
