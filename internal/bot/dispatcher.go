// Package bot handles the Telegram opt-in flow: users message the bot to
// register and receive their personal anonymous message link.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"whispra-server/internal/delivery"
	"whispra-server/internal/models"
	"whispra-server/pkg/logger"

	"go.uber.org/zap"
)

// Command is a recognized bot command
type Command int

const (
	// CommandNone marks plain text, which the bot ignores
	CommandNone Command = iota
	CommandStart
	CommandHelp
	CommandLink
	CommandUnknown
)

func (c Command) String() string {
	switch c {
	case CommandStart:
		return "start"
	case CommandHelp:
		return "help"
	case CommandLink:
		return "link"
	case CommandUnknown:
		return "unknown"
	default:
		return "none"
	}
}

// ParseCommand classifies a chat message. "/link@whispra_bot extra" is
// CommandLink; any other slash word is CommandUnknown.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return CommandNone
	}

	word := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(word, '@'); at >= 0 {
		word = word[:at]
	}

	switch strings.ToLower(word) {
	case "start":
		return CommandStart
	case "help":
		return CommandHelp
	case "link":
		return CommandLink
	default:
		return CommandUnknown
	}
}

// ApologyReply is sent when handling a command fails
const ApologyReply = "Sorry, something went wrong. Please try again later."

// Event is one inbound chat message
type Event struct {
	ChatID   int64
	Username string // sender handle, may be empty
	Text     string
}

// Identifier is the public username for the sender, synthesized from the
// chat id when the sender has no handle
func (e Event) Identifier() string {
	if e.Username != "" {
		return e.Username
	}
	return "user" + strconv.FormatInt(e.ChatID, 10)
}

// UserConnector opts a user in and links their chat
type UserConnector interface {
	Connect(ctx context.Context, username, chatID string) (*models.User, error)
}

// Dispatcher answers bot commands
type Dispatcher struct {
	users        UserConnector
	replier      delivery.Replier
	frontendBase string
}

// NewDispatcher creates a Dispatcher; links are built under frontendBase
func NewDispatcher(users UserConnector, replier delivery.Replier, frontendBase string) *Dispatcher {
	return &Dispatcher{
		users:        users,
		replier:      replier,
		frontendBase: strings.TrimRight(frontendBase, "/"),
	}
}

// LinkFor returns the public submission link for identifier
func (d *Dispatcher) LinkFor(identifier string) string {
	return d.frontendBase + "/" + strings.ToLower(identifier)
}

// Handle processes one event and replies in the sender's chat. Plain text is
// ignored. On failure the user gets ApologyReply and the error is returned.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	cmd := ParseCommand(ev.Text)
	if cmd == CommandNone {
		return nil
	}

	identifier := ev.Identifier()
	logger.Info("Bot command received",
		zap.String("command", cmd.String()),
		zap.Int64("chat_id", ev.ChatID),
		zap.String("username", identifier),
	)

	reply, err := d.replyFor(ctx, cmd, ev, identifier)
	if err == nil {
		err = d.replier.Reply(ctx, ev.ChatID, reply)
	}
	if err != nil {
		if replyErr := d.replier.Reply(ctx, ev.ChatID, ApologyReply); replyErr != nil {
			logger.Warn("Failed to send apology", zap.Int64("chat_id", ev.ChatID), zap.Error(replyErr))
		}
		return fmt.Errorf("failed to handle /%s: %w", cmd, err)
	}

	return nil
}

func (d *Dispatcher) replyFor(ctx context.Context, cmd Command, ev Event, identifier string) (string, error) {
	switch cmd {
	case CommandStart, CommandLink:
		if _, err := d.users.Connect(ctx, identifier, strconv.FormatInt(ev.ChatID, 10)); err != nil {
			return "", err
		}
		if cmd == CommandStart {
			return welcomeText(d.LinkFor(identifier)), nil
		}
		return linkText(d.LinkFor(identifier)), nil
	case CommandHelp:
		return helpText(d.LinkFor(identifier)), nil
	default:
		return unknownText, nil
	}
}

func welcomeText(link string) string {
	return `👋 Welcome to Whispra!

Your anonymous message link is:
` + link + `

Share this link with others to receive anonymous messages.

📝 How it works:
1. Share your link with friends
2. They can send you messages anonymously
3. You'll receive them here in this chat

⚠️ Note: Messages are completely anonymous - we don't store any sender information.

🔗 Quick Actions:
• /help - Show this message
• /link - Get your message link`
}

func helpText(link string) string {
	return `🤖 Whispra Bot Commands:

• /start - Start the bot and get your message link
• /help - Show this help message
• /link - Get your message link

📝 How to use:
1. Share your message link with friends
2. They can send you anonymous messages
3. You'll receive them here in this chat

🔗 Your message link:
` + link
}

func linkText(link string) string {
	return `🔗 Your message link:
` + link + `

Share this link to receive anonymous messages!`
}

const unknownText = "Unknown command. Send /help to see what I can do."
