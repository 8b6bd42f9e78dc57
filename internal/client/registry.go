package client

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/darkepoch/mubot/internal/task"
	"github.com/darkepoch/mubot/internal/utils"
)

// Registry tracks the game clients found on screen and the task assigned to
// each one. The first MaxActive clients in discovery order are active.
type Registry struct {
	mu      sync.RWMutex
	enum    WindowEnumerator
	titles  []string
	clients []*ClientWindow
	tasks   map[ID]task.Task
	logger  *slog.Logger
	now     func() time.Time
}

func NewRegistry(enum WindowEnumerator, titles []string, logger *slog.Logger) *Registry {
	if enum == nil {
		enum = NullEnumerator{}
	}
	lowered := make([]string, 0, len(titles))
	for _, t := range titles {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}
	return &Registry{
		enum:   enum,
		titles: lowered,
		tasks:  make(map[ID]task.Task),
		logger: logger,
		now:    time.Now,
	}
}

// Supported reports whether the registry has a real window backend.
func (r *Registry) Supported() bool {
	_, null := r.enum.(NullEnumerator)
	return !null
}

// Scan refreshes the client list. Clients still present keep their position,
// new ones are appended in enumeration order and missing ones are forgotten.
func (r *Registry) Scan() []ClientWindow {
	found, err := r.enum.Windows()
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			r.logger.Debug("Window enumeration not available", slog.Any("error", err))
		} else {
			r.logger.Warn("Window enumeration failed", slog.Any("error", err))
		}
		found = nil
	}

	matched := make(map[ID]WindowInfo)
	var order []ID
	for _, w := range found {
		if !r.matches(w) {
			continue
		}
		if _, dup := matched[w.ID]; dup {
			continue
		}
		matched[w.ID] = w
		order = append(order, w.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	next := make([]*ClientWindow, 0, len(order))
	known := make(map[ID]bool, len(r.clients))
	for _, c := range r.clients {
		w, present := matched[c.ID]
		if !present {
			r.logger.Info("Client window closed", slog.String("client", c.ID.String()), slog.String("title", c.Title))
			continue
		}
		c.Title, c.Rect, c.PID, c.LastSeen = w.Title, w.Rect, w.PID, now
		next = append(next, c)
		known[c.ID] = true
	}
	for _, id := range order {
		if known[id] {
			continue
		}
		w := matched[id]
		next = append(next, &ClientWindow{ID: w.ID, PID: w.PID, Title: w.Title, Rect: w.Rect, LastSeen: now})
		r.logger.Info("Client window found", slog.String("client", w.ID.String()), slog.String("title", w.Title))
	}

	for i, c := range next {
		c.Active = i < MaxActive
	}
	r.clients = next

	return r.snapshot(false)
}

func (r *Registry) matches(w WindowInfo) bool {
	if w.Rect.Width() <= minWindowSize || w.Rect.Height() <= minWindowSize {
		return false
	}
	title := strings.ToLower(w.Title)
	for _, t := range r.titles {
		if strings.Contains(title, t) {
			return true
		}
	}
	return false
}

// Clients returns every known client in discovery order.
func (r *Registry) Clients() []ClientWindow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(false)
}

// ActiveClients returns at most MaxActive clients.
func (r *Registry) ActiveClients() []ClientWindow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(true)
}

func (r *Registry) snapshot(activeOnly bool) []ClientWindow {
	out := make([]ClientWindow, 0, len(r.clients))
	for _, c := range r.clients {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, *c)
	}
	return out
}

func (r *Registry) Get(id ID) (ClientWindow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if c.ID == id {
			return *c, true
		}
	}
	return ClientWindow{}, false
}

// Focus brings the client to the foreground. Failures are logged only.
func (r *Registry) Focus(c ClientWindow) bool {
	if err := r.enum.Focus(c.ID); err != nil {
		if !errors.Is(err, ErrUnsupported) {
			r.logger.Debug("Could not focus client", slog.String("client", c.ID.String()), slog.Any("error", err))
		}
		return false
	}
	return true
}

// Rect returns the client geometry, or DefaultRect when unavailable.
func (r *Registry) Rect(c ClientWindow) Rect {
	rect, err := r.enum.Rect(c.ID)
	if err != nil {
		if !errors.Is(err, ErrUnsupported) {
			r.logger.Debug("Could not read client geometry", slog.String("client", c.ID.String()), slog.Any("error", err))
		}
		return DefaultRect
	}
	return rect
}

func (r *Registry) Center(c ClientWindow) utils.Position {
	return r.Rect(c).Center()
}

// AssignTask validates t and binds it to the client. The assignment survives
// until it is overwritten.
func (r *Registry) AssignTask(id ID, t task.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("could not assign task to %s: %w", id, err)
	}

	r.mu.Lock()
	r.tasks[id] = t
	r.mu.Unlock()

	r.logger.Info("Task assigned", slog.String("client", id.String()), slog.String("task", t.Label()))
	return nil
}

func (r *Registry) TaskFor(id ID) (task.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, found := r.tasks[id]
	return t, found
}

// ClearTask removes an explicit assignment so the default policy applies again.
func (r *Registry) ClearTask(id ID) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
}

func (r *Registry) Assignments() map[ID]task.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ID]task.Task, len(r.tasks))
	for id, t := range r.tasks {
		out[id] = t
	}
	return out
}

// Arrange centers a single active client, or tiles two side by side.
func (r *Registry) Arrange() error {
	active := r.ActiveClients()
	if len(active) == 0 {
		return errors.New("no client windows to arrange")
	}

	sw, sh, err := r.enum.ScreenSize()
	if err != nil {
		return fmt.Errorf("cannot arrange windows: %w", err)
	}

	if len(active) == 1 {
		c := active[0]
		w, h := c.Rect.Width(), c.Rect.Height()
		left, top := (sw-w)/2, (sh-h)/2
		if err = r.enum.Move(c.ID, Rect{Left: left, Top: top, Right: left + w, Bottom: top + h}); err != nil {
			return fmt.Errorf("error moving %s: %w", c.ID, err)
		}
		r.logger.Info("Arranged single window to center", slog.String("title", c.Title))
		return nil
	}

	half := sw / 2
	for i, c := range active {
		target := Rect{Left: i * half, Top: 0, Right: (i + 1) * half, Bottom: sh}
		if err = r.enum.Move(c.ID, target); err != nil {
			return fmt.Errorf("error moving %s: %w", c.ID, err)
		}
	}
	r.logger.Info("Arranged windows side by side", slog.Int("count", len(active)))

	return nil
}
