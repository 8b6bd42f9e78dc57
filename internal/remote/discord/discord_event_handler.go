package discord

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/bwmarrin/discordgo"
	"github.com/darkepoch/mubot/internal/config"
	"github.com/darkepoch/mubot/internal/event"
)

const (
	colorGreen  = 0x2ecc71
	colorOrange = 0xe67e22
	colorRed    = 0xe74c3c
)

func (b *Bot) Handle(ctx context.Context, e event.Event) error {
	if !b.shouldPublish(e) {
		return nil
	}

	switch evt := e.(type) {
	case event.StateChangedEvent:
		return b.sendEmbed(ctx, stateEmbed(evt))
	case event.ErrorThresholdReachedEvent:
		return b.sendEmbed(ctx, &discordgo.MessageEmbed{
			Title:       "Bot stopped",
			Description: evt.Message(),
			Color:       colorRed,
			Timestamp:   evt.OccurredAt().Format("2006-01-02T15:04:05Z07:00"),
		})
	case event.CycleFailedEvent:
		message := fmt.Sprintf("**[%s]** cycle failed (%d in a row): %s", evt.Source(), evt.ConsecutiveErrors, evt.Message())
		return b.sendEventMessage(ctx, message)
	case event.TaskFinishedEvent:
		result := "failed"
		if evt.Success {
			result = "succeeded"
		}
		message := fmt.Sprintf("**[%s]** %s %s", evt.Client, evt.Task, result)
		return b.sendEventMessage(ctx, message)
	case event.ProcessExitedEvent:
		message := fmt.Sprintf("**[%d]** %s", evt.PID, evt.Message())
		return b.sendEventMessage(ctx, message)
	case event.NgrokTunnelEvent:
		return b.sendEventMessage(ctx, evt.Message())
	}

	if e.Image() == nil {
		return nil
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, e.Image(), &jpeg.Options{Quality: 80}); err != nil {
		return err
	}

	message := fmt.Sprintf("**[%s]** %s", e.Source(), e.Message())
	return b.sendScreenshot(ctx, message, buf.Bytes())
}

func stateEmbed(evt event.StateChangedEvent) *discordgo.MessageEmbed {
	color := colorGreen
	if evt.State != "running" {
		color = colorOrange
	}
	return &discordgo.MessageEmbed{
		Title:     evt.Message(),
		Color:     color,
		Timestamp: evt.OccurredAt().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (b *Bot) sendEventMessage(ctx context.Context, message string) error {
	if b.useWebhook {
		return b.webhookClient.Send(ctx, message, "", nil)
	}

	_, err := b.discordSession.ChannelMessageSend(b.channelID, message)
	return err
}

func (b *Bot) sendEmbed(ctx context.Context, embed *discordgo.MessageEmbed) error {
	if b.useWebhook {
		return b.webhookClient.SendEmbed(ctx, embed)
	}

	_, err := b.discordSession.ChannelMessageSendEmbed(b.channelID, embed)
	return err
}

func (b *Bot) sendScreenshot(ctx context.Context, message string, image []byte) error {
	if b.useWebhook {
		return b.webhookClient.Send(ctx, message, "Screenshot.jpeg", image)
	}

	reader := bytes.NewReader(image)
	_, err := b.discordSession.ChannelMessageSendComplex(b.channelID, &discordgo.MessageSend{
		Files:   []*discordgo.File{{Name: "Screenshot.jpeg", ContentType: "image/jpeg", Reader: reader}},
		Content: message,
	})
	return err
}

func (b *Bot) shouldPublish(e event.Event) bool {
	cfg := config.Current().Discord

	switch e.(type) {
	case event.StateChangedEvent, event.ProcessExitedEvent:
		return cfg.EnableStatusMessages
	case event.ErrorThresholdReachedEvent, event.CycleFailedEvent:
		return cfg.EnableErrorMessages
	case event.TaskFinishedEvent:
		return cfg.EnableTaskMessages
	case event.NgrokTunnelEvent:
		return true
	case event.ClientsChangedEvent:
		return false
	}

	return e.Image() != nil
}
