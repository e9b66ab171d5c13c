package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMessageLimit is the maximum accepted message length in characters
	DefaultMessageLimit = 1000
)

// UserSettings holds the recipient's delivery preferences
type UserSettings struct {
	AllowMessages bool `json:"allowMessages"`
	MessageLimit  int  `json:"messageLimit"`
}

// DefaultUserSettings returns the settings every new user starts with
func DefaultUserSettings() UserSettings {
	return UserSettings{
		AllowMessages: true,
		MessageLimit:  DefaultMessageLimit,
	}
}

// User is a message recipient linked to a Telegram chat
type User struct {
	ID            string       `json:"-"`             // UUID, internal only
	Username      string       `json:"username"`      // Public identifier, case-sensitive
	ChatID        string       `json:"-"`             // Telegram chat id, never exposed
	CreatedAt     time.Time    `json:"createdAt"`     // Set once at creation
	MessageCount  int64        `json:"messageCount"`  // Successful deliveries
	LastMessageAt *time.Time   `json:"lastMessageAt"` // Last successful delivery
	Settings      UserSettings `json:"settings"`
}

// ConnectRequest is the body of POST /connect
type ConnectRequest struct {
	Username string `json:"username" binding:"required"`
	ChatID   string `json:"chatId" binding:"required"`
}

// UnmarshalJSON accepts chatId as either a JSON string or number, since the
// Telegram chat id is numeric
func (r *ConnectRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Username string      `json:"username"`
		ChatID   interface{} `json:"chatId"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	r.Username = strings.TrimSpace(raw.Username)
	switch v := raw.ChatID.(type) {
	case nil:
		r.ChatID = ""
	case string:
		r.ChatID = strings.TrimSpace(v)
	case json.Number:
		r.ChatID = v.String()
	default:
		return fmt.Errorf("chatId must be a string or number")
	}
	return nil
}

// NewUser creates a new User with generated UUID and timestamps
func NewUser(username, chatID string, settings UserSettings) *User {
	if settings.MessageLimit <= 0 {
		settings.MessageLimit = DefaultMessageLimit
	}
	return &User{
		ID:        uuid.New().String(),
		Username:  username,
		ChatID:    chatID,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Settings:  settings,
	}
}

// AcceptsMessages reports whether anonymous messages may be relayed to the user
func (u *User) AcceptsMessages() bool {
	return u.Settings.AllowMessages
}

// ExceedsLimit reports whether a text of n characters is over the user's limit
func (u *User) ExceedsLimit(n int) bool {
	return n > u.Settings.MessageLimit
}
