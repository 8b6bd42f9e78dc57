package discord

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/darkepoch/mubot/internal/bot"
	"github.com/darkepoch/mubot/internal/client"
	"github.com/darkepoch/mubot/internal/config"
	"github.com/darkepoch/mubot/internal/task"
)

// Clients is the part of the client registry exposed through chat.
type Clients interface {
	Clients() []client.ClientWindow
	TaskFor(id client.ID) (task.Task, bool)
}

type Bot struct {
	discordSession *discordgo.Session
	channelID      string
	controller     bot.Controller
	clients        Clients
	useWebhook     bool
	webhookClient  *webhookClient
}

func NewBot(token, channelID string, controller bot.Controller, clients Clients, useWebhook bool, webhookURL string) (*Bot, error) {
	botInstance := &Bot{
		channelID:  channelID,
		controller: controller,
		clients:    clients,
		useWebhook: useWebhook,
	}

	if useWebhook {
		if webhookURL == "" {
			return nil, fmt.Errorf("webhook URL is required when using webhook mode")
		}
		botInstance.webhookClient = newWebhookClient(webhookURL)
		return botInstance, nil
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	botInstance.discordSession = dg

	return botInstance, nil
}

func (b *Bot) Start(ctx context.Context) error {
	if b.useWebhook {
		<-ctx.Done()
		return nil
	}

	b.discordSession.AddHandler(b.onMessageCreated)
	// MESSAGE_CONTENT is needed to read commands
	b.discordSession.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	err := b.discordSession.Open()
	if err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	<-ctx.Done()

	return b.discordSession.Close()
}

func (b *Bot) onMessageCreated(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}

	if !slices.Contains(config.Current().Discord.BotAdmins, m.Author.ID) {
		return
	}

	if !strings.HasPrefix(m.Content, "!") {
		return
	}

	if reply := b.handleCommand(m.Content); reply != "" {
		s.ChannelMessageSend(m.ChannelID, reply)
	}
}
