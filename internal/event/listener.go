package event

import (
	"context"
	"log/slog"
	"sync"
)

const queueSize = 100

var events = make(chan Event, queueSize)

type Handler func(ctx context.Context, e Event) error

// Listener fans every sent event out to the registered handlers.
type Listener struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *slog.Logger
}

func NewListener(logger *slog.Logger) *Listener {
	return &Listener{logger: logger}
}

func (l *Listener) Register(h Handler) {
	l.mu.Lock()
	l.handlers = append(l.handlers, h)
	l.mu.Unlock()
}

// Listen delivers events until ctx is done.
func (l *Listener) Listen(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			l.dispatch(ctx, e)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, e Event) {
	l.mu.RLock()
	handlers := make([]Handler, len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			l.logger.Error("Error handling event",
				slog.String("event", e.Message()),
				slog.String("source", e.Source()),
				slog.Any("error", err),
			)
		}
	}
}

// Send queues e for delivery. Events are dropped when nobody is draining the
// queue, so Send never blocks the caller.
func Send(e Event) bool {
	select {
	case events <- e:
		return true
	default:
		return false
	}
}
