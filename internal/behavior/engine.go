// Package behavior decides what to do with a client once its screen is known
// and drives the input needed to do it.
package behavior

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/darkepoch/mubot/internal/client"
	"github.com/darkepoch/mubot/internal/input"
	"github.com/darkepoch/mubot/internal/screen"
	"github.com/darkepoch/mubot/internal/task"
	"github.com/darkepoch/mubot/internal/utils"
	"github.com/darkepoch/mubot/internal/vision"
)

// Finder is the part of the template matcher used by behaviors.
type Finder interface {
	Frame() (image.Image, error)
	Invalidate()
	FindOne(name string, opts ...vision.Option) (vision.MatchResult, bool)
	FindAll(name string, limit int, opts ...vision.Option) []vision.MatchResult
	FindAny(names []string, limit int, opts ...vision.Option) []vision.MatchResult
}

type Classifier interface {
	Classify() screen.State
}

// Clients is the part of the registry used by behaviors.
type Clients interface {
	Focus(c client.ClientWindow) bool
	Center(c client.ClientWindow) utils.Position
	TaskFor(id client.ID) (task.Task, bool)
}

type Settings struct {
	ClickDelayMin float64
	ClickDelayMax float64
	// LowHealthPercent is only used together with a HealthReader, 0 disables it.
	LowHealthPercent int
}

type Deps struct {
	Finder     Finder
	Classifier Classifier
	Clients    Clients
	Input      input.Sink
	Policy     task.DefaultPolicy
	// Health is optional.
	Health   vision.HealthReader
	Settings Settings
}

// Outcome describes a single dispatch.
type Outcome struct {
	Client   client.ID     `json:"client"`
	Index    int           `json:"index"`
	Screen   screen.State  `json:"screen"`
	Task     string        `json:"task"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
}

// Engine runs behaviors for one client at a time. Dispatch must not be called
// concurrently, CurrentTask can be read from anywhere.
type Engine struct {
	finder     Finder
	classifier Classifier
	clients    Clients
	input      input.Sink
	policy     task.DefaultPolicy
	health     vision.HealthReader
	settings   Settings
	logger     *slog.Logger

	rng  *rand.Rand
	wait func(ctx context.Context, d time.Duration) error

	mu      sync.RWMutex
	current string
}

func NewEngine(d Deps, logger *slog.Logger) *Engine {
	in := d.Input
	if in == nil {
		in = input.Null{Logger: logger}
	}

	return &Engine{
		finder:     d.Finder,
		classifier: d.Classifier,
		clients:    d.Clients,
		input:      in,
		policy:     d.Policy,
		health:     d.Health,
		settings:   d.Settings,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		wait:       utils.Wait,
	}
}

// CurrentTask returns the label of the last thing the engine started doing.
func (e *Engine) CurrentTask() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

func (e *Engine) setCurrent(label string) {
	e.mu.Lock()
	e.current = label
	e.mu.Unlock()
}

// Dispatch focuses c, classifies its screen and runs whatever fits. index is
// the client position in the active set and picks the default task.
// A returned error is a fault the caller must count, a failed behavior is
// only reported through Outcome.Success.
func (e *Engine) Dispatch(ctx context.Context, c client.ClientWindow, index int) (Outcome, error) {
	start := time.Now()
	out := Outcome{Client: c.ID, Index: index}
	lg := e.logger.With(slog.String("client", c.ID.String()), slog.Int("index", index))

	if e.clients.Focus(c) {
		if err := e.pause(ctx, 0.5, 1.0); err != nil {
			return out, err
		}
	}
	e.finder.Invalidate()

	out.Screen = e.classifier.Classify()
	var err error
	switch out.Screen {
	case screen.Login:
		lg.Info("Login screen detected")
		out.Task = "login"
		e.setCurrent(out.Task)
		out.Success, err = e.clickTemplate(ctx, screen.LoginButton)
	case screen.MainMenu:
		lg.Info("Main menu detected")
		out.Task = "main_menu"
		e.setCurrent(out.Task)
		out.Success, err = e.clickTemplate(ctx, screen.PlayButton)
	case screen.InGame:
		t := e.resolve(c, index, lg)
		out.Task = t.Label()
		e.setCurrent(out.Task)
		lg.Info("Executing task", slog.String("task", out.Task))
		out.Success, err = e.run(ctx, c, t)
	default:
		lg.Warn("Unknown screen state")
		out.Task = "recovery"
		e.setCurrent(out.Task)
		err = e.recoverScreen(ctx)
	}
	out.Duration = time.Since(start)

	if err != nil {
		return out, fmt.Errorf("client %s %s: %w", c.ID, out.Task, err)
	}
	return out, nil
}

// resolve returns the enabled task assigned to c, or the default for index.
func (e *Engine) resolve(c client.ClientWindow, index int, lg *slog.Logger) task.Task {
	if t, found := e.clients.TaskFor(c.ID); found {
		if t.Enabled {
			return t
		}
		lg.Debug("Assigned task is disabled, using default", slog.String("task", t.Name))
	}
	return e.policy.For(index)
}

func (e *Engine) run(ctx context.Context, c client.ClientWindow, t task.Task) (bool, error) {
	params := t.Params
	if params == nil {
		d, err := task.Default(t.Type)
		if err != nil {
			e.logger.Warn("Unknown task type, doing maintenance", slog.String("type", string(t.Type)))
			return e.maintain(ctx, task.DefaultMaintenanceParams())
		}
		params = d.Params
	}

	switch p := params.(type) {
	case task.GatherParams:
		return e.gather(ctx, c, p)
	case task.CombatParams:
		return e.fight(ctx, c, p)
	case task.MissionParams:
		return e.mission(ctx, c, p)
	case task.MaintenanceParams:
		return e.maintain(ctx, p)
	default:
		e.logger.Warn("Unknown task type, doing maintenance", slog.String("type", string(t.Type)))
		return e.maintain(ctx, task.DefaultMaintenanceParams())
	}
}

func (e *Engine) clickTemplate(ctx context.Context, name string) (bool, error) {
	m, found := e.finder.FindOne(name)
	if !found {
		e.logger.Warn("Template not found", slog.String("template", name))
		return false, nil
	}
	if err := e.safeClick(ctx, m.Position); err != nil {
		return false, err
	}
	e.logger.Info("Clicked", slog.String("template", name))
	return true, nil
}
