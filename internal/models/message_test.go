package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMessage(t *testing.T) {
	meta := MessageMetadata{IPAddress: "203.0.113.7", UserAgent: "curl/8"}
	msg := NewMessage("recipient-1", "hello", meta)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "recipient-1", msg.RecipientID)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, StatusPending, msg.Status)
	assert.Equal(t, meta, msg.Metadata)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestMessageStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to MessageStatus
		want     bool
	}{
		{StatusPending, StatusDelivered, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusPending, false},
		{StatusDelivered, StatusFailed, false},
		{StatusFailed, StatusDelivered, false},
		{StatusDelivered, StatusPending, false},
		{StatusFailed, StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestMessageStats_Pending(t *testing.T) {
	stats := MessageStats{Total: 5, Delivered: 3, Failed: 1}
	assert.Equal(t, int64(1), stats.Pending())
	assert.Equal(t, int64(0), MessageStats{}.Pending())
}
