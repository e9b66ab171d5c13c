// Package delivery forwards relayed messages to the recipient's chat.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrDisabled is returned by the Disabled gateway
var ErrDisabled = errors.New("message delivery is disabled")

// Receipt describes an accepted delivery
type Receipt struct {
	RemoteID string    // platform message id
	SentAt   time.Time // timestamp rendered into the outbound text
}

// Gateway delivers an anonymous message to a chat session.
// Any failure, including a timeout, is returned as *DeliveryError; a failed
// call does not prove the recipient never got the message.
type Gateway interface {
	Send(ctx context.Context, chatID, text string) (*Receipt, error)
}

// Replier sends plain text back to a chat, used for bot command replies
type Replier interface {
	Reply(ctx context.Context, chatID int64, text string) error
}

// DeliveryError wraps any non-success outcome of Gateway.Send
type DeliveryError struct {
	ChatID string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// FormatAnonymous renders the text the recipient sees in their chat
func FormatAnonymous(text string, at time.Time) string {
	return fmt.Sprintf("📨 New anonymous message:\n\n%s\n\n⏰ %s", text, at.UTC().Format("2006-01-02 15:04:05 MST"))
}

// ParseChatID converts a stored chat session id to the platform's numeric id
func ParseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q", chatID)
	}
	return id, nil
}

// Disabled is a Gateway for deployments without a bot; every send fails
type Disabled struct{}

// Send always fails with ErrDisabled
func (Disabled) Send(_ context.Context, chatID, _ string) (*Receipt, error) {
	return nil, &DeliveryError{ChatID: chatID, Err: ErrDisabled}
}

// Reply always fails with ErrDisabled
func (Disabled) Reply(context.Context, int64, string) error {
	return ErrDisabled
}
