package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func drain() {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}

func TestListenerFanOut(t *testing.T) {
	drain()
	l := NewListener(slog.New(slog.NewTextHandler(io.Discard, nil)))

	got := make(chan string, 4)
	l.Register(func(_ context.Context, e Event) error {
		got <- "first:" + e.Message()
		return errors.New("handler errors do not stop delivery")
	})
	l.Register(func(_ context.Context, e Event) error {
		got <- "second:" + e.Message()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- l.Listen(ctx) }()

	if !Send(StateChanged(Text("bot", "started"), "running")) {
		t.Fatalf("send should succeed with room in the queue")
	}

	for _, want := range []string{"first:started", "second:started"} {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("expected %q, got %q", want, v)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendNeverBlocks(t *testing.T) {
	drain()
	defer drain()

	for i := 0; i < queueSize; i++ {
		if !Send(Text("bot", "fill")) {
			t.Fatalf("event %d should fit", i)
		}
	}
	if Send(Text("bot", "overflow")) {
		t.Fatalf("a full queue should drop the event")
	}
}

func TestBaseEvent(t *testing.T) {
	a := Text("0x10", "hello")
	b := Text("0x10", "hello")
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("expected unique ids, got %q and %q", a.ID(), b.ID())
	}
	if a.Source() != "0x10" || a.Message() != "hello" || a.Image() != nil {
		t.Fatalf("unexpected event %+v", a)
	}
	if time.Since(a.OccurredAt()) > time.Minute {
		t.Fatalf("unexpected timestamp %v", a.OccurredAt())
	}

	tunnel := NgrokTunnel("https://example.ngrok.app")
	if tunnel.URL != "https://example.ngrok.app" || tunnel.Source() != "ngrok" {
		t.Fatalf("unexpected tunnel event %+v", tunnel)
	}
}
