package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/darkepoch/mubot/internal/behavior"
	"github.com/darkepoch/mubot/internal/client"
	"github.com/darkepoch/mubot/internal/event"
	"github.com/darkepoch/mubot/internal/utils"
	"github.com/google/uuid"
)

const (
	defaultStopTimeout = 5 * time.Second
	eventSource        = "bot"
)

var (
	ErrUnsupportedPlatform = errors.New("bot not supported on this platform")
	ErrAlreadyRunning      = errors.New("bot already running")
	ErrNotRunning          = errors.New("bot not running")
	ErrAlreadyPaused       = errors.New("bot already paused")
	ErrNotPaused           = errors.New("bot not paused")
	ErrStillStopping       = errors.New("previous run is still stopping")
	ErrNoActiveClients     = errors.New("no active clients found")
)

// Registry is the part of the client registry the scheduler drives.
type Registry interface {
	Supported() bool
	Scan() []client.ClientWindow
	ActiveClients() []client.ClientWindow
}

// Controller is what the remote surfaces need to drive the bot.
type Controller interface {
	Start() error
	Stop() error
	Pause() error
	Resume() error
	Status() Status
}

type Dispatcher interface {
	Dispatch(ctx context.Context, c client.ClientWindow, index int) (behavior.Outcome, error)
}

type Settings struct {
	CycleDelayMin  float64
	CycleDelayMax  float64
	ErrorThreshold int
	// StopTimeout bounds how long Stop waits for the loop, 5s when zero.
	StopTimeout time.Duration
}

// Status is a point in time view of the scheduler.
type Status struct {
	State          string    `json:"state"`
	Running        bool      `json:"running"`
	Paused         bool      `json:"paused"`
	Errors         int       `json:"errors"`
	ErrorThreshold int       `json:"errorThreshold"`
	Cycles         int64     `json:"cycles"`
	CurrentTask    string    `json:"currentTask"`
	Session        string    `json:"session,omitempty"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
	LastUpdate     time.Time `json:"lastUpdate"`
}

func (s Status) String() string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "Bot is %s", s.State)
	if s.CurrentTask != "" {
		fmt.Fprintf(&b, ", current task: %s", s.CurrentTask)
	}
	fmt.Fprintf(&b, ", errors %d/%d, cycles %d", s.Errors, s.ErrorThreshold, s.Cycles)
	if s.Running && !s.StartedAt.IsZero() {
		fmt.Fprintf(&b, ", up %s", time.Since(s.StartedAt).Round(time.Second))
	}
	return b.String()
}

// Scheduler owns the worker goroutine running cycles over the active clients.
// Start, Stop, Pause and Resume are safe to call from any goroutine.
type Scheduler struct {
	registry   Registry
	dispatcher Dispatcher
	settings   Settings
	logger     *slog.Logger
	state      *State

	rng  *rand.Rand
	wait func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	session   string
	startedAt time.Time

	// only touched by the worker
	lastActive []client.ID
}

func NewScheduler(registry Registry, dispatcher Dispatcher, settings Settings, logger *slog.Logger) *Scheduler {
	if settings.ErrorThreshold < 1 {
		settings.ErrorThreshold = 1
	}
	if settings.StopTimeout <= 0 {
		settings.StopTimeout = defaultStopTimeout
	}

	return &Scheduler{
		registry:   registry,
		dispatcher: dispatcher,
		settings:   settings,
		logger:     logger,
		state:      &State{},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		wait:       utils.Wait,
	}
}

func (s *Scheduler) State() *State {
	return s.state
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	session, startedAt := s.session, s.startedAt
	s.mu.Unlock()

	return Status{
		State:          s.state.Phase().String(),
		Running:        s.state.Running(),
		Paused:         s.state.Paused(),
		Errors:         s.state.Errors(),
		ErrorThreshold: s.settings.ErrorThreshold,
		Cycles:         s.state.Cycles(),
		CurrentTask:    s.state.CurrentTask(),
		Session:        session,
		StartedAt:      startedAt,
		LastUpdate:     s.state.LastUpdate(),
	}
}

func (s *Scheduler) Start() error {
	if !s.registry.Supported() {
		s.logger.Error("Bot not supported on this platform, window management is unavailable")
		return ErrUnsupportedPlatform
	}

	s.mu.Lock()
	prev := s.done
	s.mu.Unlock()
	// a stopped loop may still be finishing its last dispatch
	if prev != nil && !s.state.Running() && !s.joined(prev) {
		return ErrStillStopping
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Running() {
		s.logger.Warn("Bot already running")
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.session = uuid.NewString()
	s.startedAt = time.Now()
	s.lastActive = nil
	s.state.resetErrors()
	s.state.set(Running)
	utils.SetSessionStart()

	go s.loop(ctx, s.done)

	s.logger.Info("Bot started", slog.String("session", s.session))
	event.Send(event.StateChanged(event.Text(eventSource, "Bot started"), Running.String()))
	return nil
}

// Stop cancels the loop and waits for it to exit, at most StopTimeout.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.state.Running() {
		s.mu.Unlock()
		s.logger.Warn("Bot already stopped")
		return ErrNotRunning
	}
	s.state.set(Stopped)
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil && !s.joined(done) {
		s.logger.Warn("Bot loop did not exit in time", slog.Duration("timeout", s.settings.StopTimeout))
	}

	s.logger.Info("Bot stopped")
	event.Send(event.StateChanged(event.Text(eventSource, "Bot stopped"), Stopped.String()))
	return nil
}

func (s *Scheduler) Pause() error {
	if s.state.transition(Running, Paused) {
		s.logger.Info("Bot paused")
		event.Send(event.StateChanged(event.Text(eventSource, "Bot paused"), Paused.String()))
		return nil
	}
	if s.state.Paused() {
		s.logger.Warn("Bot already paused")
		return ErrAlreadyPaused
	}
	s.logger.Warn("Cannot pause, bot not running")
	return ErrNotRunning
}

func (s *Scheduler) Resume() error {
	if s.state.transition(Paused, Running) {
		s.logger.Info("Bot resumed")
		event.Send(event.StateChanged(event.Text(eventSource, "Bot resumed"), Running.String()))
		return nil
	}
	if s.state.Phase() == Running {
		s.logger.Warn("Bot not paused")
		return ErrNotPaused
	}
	s.logger.Warn("Cannot resume, bot not running")
	return ErrNotRunning
}

// Wait blocks until the current loop exits or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) joined(done chan struct{}) bool {
	t := time.NewTimer(s.settings.StopTimeout)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for s.state.Running() && ctx.Err() == nil {
		if !s.state.Paused() && s.step(ctx) {
			break
		}

		delay := utils.RandomDuration(s.rng, s.settings.CycleDelayMin, s.settings.CycleDelayMax)
		if err := s.wait(ctx, delay); err != nil {
			break
		}
	}

	s.logger.Info("Bot loop exited")
}

// step runs one cycle and accounts for it. It reports whether the loop must
// exit.
func (s *Scheduler) step(ctx context.Context) bool {
	err := s.runCycle(ctx)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		return s.countFailure(err)
	}
	s.state.passCycle()
	return false
}

// countFailure records a failed cycle and stops the bot once the threshold is
// reached. It reports whether the loop must exit.
func (s *Scheduler) countFailure(err error) bool {
	n := s.state.failCycle()
	if errors.Is(err, ErrNoActiveClients) {
		s.logger.Warn("No active clients found", slog.Int("errors", n))
	} else {
		s.logger.Error("Error in bot loop", slog.Any("error", err), slog.Int("errors", n))
	}
	event.Send(event.CycleFailed(event.Text(eventSource, err.Error()), n))

	if n < s.settings.ErrorThreshold {
		return false
	}

	s.logger.Error("Error threshold reached, stopping bot", slog.Int("errors", n), slog.Int("threshold", s.settings.ErrorThreshold))
	s.mu.Lock()
	s.state.set(Stopped)
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	event.Send(event.ErrorThresholdReached(event.Text(eventSource, fmt.Sprintf("Error threshold reached (%d), bot stopped", n)), n, s.settings.ErrorThreshold))
	return true
}

// runCycle scans for clients and dispatches each active one. A panic anywhere
// in the cycle is turned into an error.
func (s *Scheduler) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
			s.logger.Error("Panic recovered in cycle", slog.String("stack", string(debug.Stack())))
		}
	}()

	s.logger.Debug("Running bot cycle")
	s.registry.Scan()
	active := s.registry.ActiveClients()
	s.notifyClients(active)
	if len(active) == 0 {
		return ErrNoActiveClients
	}

	failed := 0
	for i, c := range active {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		out, err := s.dispatch(ctx, c, i)
		if out.Task != "" {
			s.state.setTask(out.Task)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			s.logger.Error("Error while processing client", slog.Int("index", i), slog.String("client", c.ID.String()), slog.Any("error", err))
			continue
		}

		event.Send(event.TaskFinished(event.Text(c.ID.String(), fmt.Sprintf("%s on %s", out.Task, out.Screen)), c.ID.String(), out.Task, out.Success))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d clients failed", failed, len(active))
	}
	return nil
}

// dispatch isolates a client so a panic only fails that client.
func (s *Scheduler) dispatch(ctx context.Context, c client.ClientWindow, index int) (out behavior.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("client %s panicked: %v", c.ID, r)
		}
	}()
	return s.dispatcher.Dispatch(ctx, c, index)
}

func (s *Scheduler) notifyClients(active []client.ClientWindow) {
	ids := make([]client.ID, len(active))
	names := make([]string, len(active))
	for i, c := range active {
		ids[i] = c.ID
		names[i] = c.ID.String()
	}
	if slices.Equal(ids, s.lastActive) {
		return
	}
	s.lastActive = ids

	s.logger.Info("Active clients changed", slog.Any("clients", names))
	event.Send(event.ClientsChanged(event.Text(eventSource, fmt.Sprintf("%d active clients", len(names))), names))
}
