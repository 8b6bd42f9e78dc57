package telegram

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/darkepoch/mubot/internal/bot"
	"github.com/darkepoch/mubot/internal/event"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeController struct {
	called string
	err    error
}

func (f *fakeController) record(name string) error {
	f.called = name
	return f.err
}

func (f *fakeController) Start() error  { return f.record("start") }
func (f *fakeController) Stop() error   { return f.record("stop") }
func (f *fakeController) Pause() error  { return f.record("pause") }
func (f *fakeController) Resume() error { return f.record("resume") }
func (f *fakeController) Status() bot.Status {
	return bot.Status{State: "paused", Paused: true, Running: true, ErrorThreshold: 5}
}

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestReply(t *testing.T) {
	tests := []struct {
		text   string
		called string
		want   string
	}{
		{"/start", "start", "OK: start"},
		{"Stop", "stop", "OK: stop"},
		{"/pause@mubot", "pause", "OK: pause"},
		{"resume please", "resume", "OK: resume"},
		{"/status", "", "Bot is paused"},
		{"/jump", "", "Unknown command \"jump\""},
		{"   ", "", "Empty command"},
	}

	for _, tt := range tests {
		ctrl := &fakeController{}
		b := &Bot{controller: ctrl}
		got := b.reply(tt.text)
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("%q: expected reply starting with %q, got %q", tt.text, tt.want, got)
		}
		if ctrl.called != tt.called {
			t.Errorf("%q: expected %q to be called, got %q", tt.text, tt.called, ctrl.called)
		}
	}
}

func TestReplyErrors(t *testing.T) {
	b := &Bot{controller: &fakeController{err: bot.ErrUnsupportedPlatform}}
	if got := b.reply("/start"); got != "Bot can't run on this platform." {
		t.Fatalf("unexpected reply %q", got)
	}

	b = &Bot{controller: &fakeController{err: bot.ErrNotPaused}}
	if got := b.reply("/resume"); !strings.Contains(got, bot.ErrNotPaused.Error()) {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestHandle(t *testing.T) {
	s := &fakeSender{}
	b := &Bot{sender: s, chatID: 42}
	ctx := context.Background()

	events := []event.Event{
		event.StateChanged(event.Text("bot", "Bot stopped"), "stopped"),
		event.CycleFailed(event.Text("bot", "no active clients found"), 3),
		event.TaskFinished(event.Text("0xA", "gather"), "0xA", "gather", true),
		event.WithScreenshot("0xA", "stuck", image.NewRGBA(image.Rect(0, 0, 4, 4))),
	}
	for _, e := range events {
		if err := b.Handle(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(s.sent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(s.sent))
	}
	msg, ok := s.sent[1].(tgbotapi.MessageConfig)
	if !ok || msg.ChatID != 42 || !strings.Contains(msg.Text, "3 in a row") {
		t.Errorf("unexpected cycle failure message %+v", s.sent[1])
	}
	photo, ok := s.sent[2].(tgbotapi.PhotoConfig)
	if !ok || photo.Caption != "[0xA] stuck" {
		t.Errorf("expected a screenshot, got %+v", s.sent[2])
	}
}

func TestHandleSendError(t *testing.T) {
	b := &Bot{sender: &fakeSender{err: errors.New("boom")}, chatID: 1}
	err := b.Handle(context.Background(), event.NgrokTunnel("https://x.ngrok.app"))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected send error, got %v", err)
	}
}
