package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus is the delivery state of a relayed message
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusDelivered MessageStatus = "delivered"
	StatusFailed    MessageStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed
func (s MessageStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// CanTransition reports whether a message may move from s to next.
// Only pending messages move, and only to a terminal state.
func (s MessageStatus) CanTransition(next MessageStatus) bool {
	return s == StatusPending && next.IsTerminal()
}

// MessageMetadata is diagnostic information about the sender's request
type MessageMetadata struct {
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Message is an anonymous message addressed to a recipient
type Message struct {
	ID          string          `json:"id"`
	RecipientID string          `json:"-"`
	Text        string          `json:"text"`
	CreatedAt   time.Time       `json:"createdAt"`
	Metadata    MessageMetadata `json:"metadata"`
	Status      MessageStatus   `json:"status"`
}

// SendMessageRequest is the body of POST /message/:username
type SendMessageRequest struct {
	Text string `json:"text"`
}

// MessageStats counts a recipient's messages by status
type MessageStats struct {
	Total     int64 `json:"total"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// Pending returns the number of messages still awaiting an outcome
func (s MessageStats) Pending() int64 {
	return s.Total - s.Delivered - s.Failed
}

// NewMessage creates a pending message for the recipient
func NewMessage(recipientID, text string, metadata MessageMetadata) *Message {
	return &Message{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Text:        text,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
		Metadata:    metadata,
		Status:      StatusPending,
	}
}
