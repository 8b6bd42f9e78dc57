package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/darkepoch/mubot/internal/utils"
)

const (
	// MaxActive is the number of clients the bot drives at the same time.
	MaxActive = 2
	// minWindowSize filters out tool windows and tray popups.
	minWindowSize = 50
)

var ErrUnsupported = errors.New("window management not supported on this platform")

// DefaultRect is reported when the real geometry cannot be read.
var DefaultRect = Rect{Left: 0, Top: 0, Right: 800, Bottom: 600}

// ID identifies a client, a window handle where available or a process id.
type ID uint64

func (id ID) String() string {
	return fmt.Sprintf("0x%X", uint64(id))
}

type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (r Rect) Width() int {
	return r.Right - r.Left
}

func (r Rect) Height() int {
	return r.Bottom - r.Top
}

func (r Rect) Center() utils.Position {
	return utils.Position{X: r.Left + r.Width()/2, Y: r.Top + r.Height()/2}
}

// ClientWindow is a discovered game client.
type ClientWindow struct {
	ID       ID        `json:"id"`
	PID      int       `json:"pid"`
	Title    string    `json:"title"`
	Rect     Rect      `json:"rect"`
	Active   bool      `json:"active"`
	LastSeen time.Time `json:"lastSeen"`
}

// WindowInfo is a raw top level window reported by a WindowEnumerator.
type WindowInfo struct {
	ID    ID
	PID   int
	Title string
	Rect  Rect
}

// WindowEnumerator lists and manipulates visible top level windows.
type WindowEnumerator interface {
	Windows() ([]WindowInfo, error)
	Focus(id ID) error
	Rect(id ID) (Rect, error)
	Move(id ID, r Rect) error
	ScreenSize() (int, int, error)
}

// NullEnumerator reports no windows.
type NullEnumerator struct{}

func (NullEnumerator) Windows() ([]WindowInfo, error) { return nil, ErrUnsupported }
func (NullEnumerator) Focus(ID) error                 { return ErrUnsupported }
func (NullEnumerator) Rect(ID) (Rect, error)          { return DefaultRect, ErrUnsupported }
func (NullEnumerator) Move(ID, Rect) error            { return ErrUnsupported }
func (NullEnumerator) ScreenSize() (int, int, error)  { return 0, 0, ErrUnsupported }
