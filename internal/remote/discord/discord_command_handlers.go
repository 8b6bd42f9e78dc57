package discord

import (
	"errors"
	"fmt"
	"strings"

	"github.com/darkepoch/mubot/internal/bot"
)

const helpMessage = "Available commands:\n" +
	"`!start` start the bot\n" +
	"`!stop` stop the bot\n" +
	"`!pause` pause after the current cycle\n" +
	"`!resume` resume a paused bot\n" +
	"`!status` show the bot status\n" +
	"`!clients` list detected game clients\n" +
	"`!help` show this message"

// handleCommand runs a chat command and returns the reply to post.
func (b *Bot) handleCommand(content string) string {
	prefix := strings.ToLower(strings.Fields(content)[0])
	switch prefix {
	case "!start":
		return b.handleTransition("started", b.controller.Start)
	case "!stop":
		return b.handleTransition("stopped", b.controller.Stop)
	case "!pause":
		return b.handleTransition("paused", b.controller.Pause)
	case "!resume":
		return b.handleTransition("resumed", b.controller.Resume)
	case "!status":
		return b.controller.Status().String()
	case "!clients":
		return b.handleClientsRequest()
	case "!help":
		return helpMessage
	default:
		return fmt.Sprintf("Unknown command: `%s`. Type `!help` for available commands.", prefix)
	}
}

func (b *Bot) handleTransition(done string, op func() error) string {
	err := op()
	switch {
	case err == nil:
		return "Bot " + done + "."
	case errors.Is(err, bot.ErrUnsupportedPlatform):
		return "Bot can't run on this platform."
	default:
		return fmt.Sprintf("Could not do that: %s.", err)
	}
}

func (b *Bot) handleClientsRequest() string {
	if b.clients == nil {
		return "Client tracking is not available."
	}
	list := b.clients.Clients()
	if len(list) == 0 {
		return "No game clients detected."
	}

	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%d client(s) detected:", len(list)))
	for _, c := range list {
		state := "idle"
		if c.Active {
			state = "active"
		}
		sb.WriteString(fmt.Sprintf("\n- `%s` %s (%s)", c.ID, c.Title, state))
		if t, found := b.clients.TaskFor(c.ID); found {
			sb.WriteString(", task: " + t.Label())
		}
	}
	return sb.String()
}
