package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"strings"

	"github.com/darkepoch/mubot/internal/bot"
	"github.com/darkepoch/mubot/internal/event"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	bot        *tgbotapi.BotAPI
	sender     sender
	chatID     int64
	controller bot.Controller
	logger     *slog.Logger
}

func (b *Bot) Start(ctx context.Context) error {
	offset, err := b.getLatestOffset()
	if err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(offset)
	u.Timeout = 5
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			for range updates {
			}
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil || update.Message.Chat.ID != b.chatID {
				continue
			}
			if err := b.send(tgbotapi.NewMessage(b.chatID, b.reply(update.Message.Text))); err != nil {
				b.logger.Warn("Telegram reply failed", slog.Any("error", err))
			}
		}
	}
}

// reply runs a chat command, with or without a leading slash.
func (b *Bot) reply(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "Empty command. Use: start, stop, pause, resume, status"
	}
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	// group chats address commands as /status@botname
	cmd, _, _ = strings.Cut(cmd, "@")

	var op func() error
	switch cmd {
	case "start":
		op = b.controller.Start
	case "stop":
		op = b.controller.Stop
	case "pause":
		op = b.controller.Pause
	case "resume":
		op = b.controller.Resume
	case "status", "stats":
		return b.controller.Status().String()
	default:
		return fmt.Sprintf("Unknown command %q. Use: start, stop, pause, resume, status", cmd)
	}

	if err := op(); err != nil {
		if errors.Is(err, bot.ErrUnsupportedPlatform) {
			return "Bot can't run on this platform."
		}
		return fmt.Sprintf("Could not %s: %s", cmd, err)
	}
	return "OK: " + cmd
}

// Handle forwards bot events to the configured chat.
func (b *Bot) Handle(_ context.Context, e event.Event) error {
	switch evt := e.(type) {
	case event.StateChangedEvent, event.ErrorThresholdReachedEvent, event.NgrokTunnelEvent:
		return b.send(tgbotapi.NewMessage(b.chatID, evt.Message()))
	case event.CycleFailedEvent:
		return b.send(tgbotapi.NewMessage(b.chatID, fmt.Sprintf("Cycle failed (%d in a row): %s", evt.ConsecutiveErrors, evt.Message())))
	case event.ProcessExitedEvent:
		return b.send(tgbotapi.NewMessage(b.chatID, fmt.Sprintf("[%d] %s", evt.PID, evt.Message())))
	}

	if e.Image() == nil {
		return nil
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, e.Image(), &jpeg.Options{Quality: 80}); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(b.chatID, tgbotapi.FileBytes{Name: "screenshot.jpeg", Bytes: buf.Bytes()})
	photo.Caption = fmt.Sprintf("[%s] %s", e.Source(), e.Message())
	return b.send(photo)
}

func (b *Bot) send(c tgbotapi.Chattable) error {
	if _, err := b.sender.Send(c); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (b *Bot) getLatestOffset() (int, error) {
	upds, err := b.bot.GetUpdates(tgbotapi.NewUpdate(-1))
	if err != nil {
		return 0, err
	}
	offset := 0
	if len(upds) > 0 {
		offset = upds[0].UpdateID + 1
	}
	return offset, nil
}
