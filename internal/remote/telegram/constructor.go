package telegram

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/darkepoch/mubot/internal/bot"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Waits between connection attempts. The bot is usually started together with
// the machine, when the network may not be up yet.
var connectBackoff = []time.Duration{time.Second, 3 * time.Second, 5 * time.Second}

var (
	dialAPI = tgbotapi.NewBotAPI
	sleep   = time.Sleep
)

// NewBot connects to Telegram with token and answers commands sent to chatID.
func NewBot(token string, chatID int64, controller bot.Controller, logger *slog.Logger) (*Bot, error) {
	api, err := connect(token, logger)
	if err != nil {
		return nil, err
	}

	return &Bot{bot: api, sender: api, chatID: chatID, controller: controller, logger: logger}, nil
}

func connect(token string, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	api, err := dialAPI(token)
	for _, wait := range connectBackoff {
		if err == nil {
			return api, nil
		}
		logger.Warn("Could not reach Telegram", slog.Duration("nextTry", wait), slog.Any("error", err))
		sleep(wait)
		api, err = dialAPI(token)
	}
	if err != nil {
		return nil, fmt.Errorf("error connecting to Telegram: %w", err)
	}

	return api, nil
}
