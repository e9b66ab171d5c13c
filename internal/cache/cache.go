package cache

import (
	"context"
	"time"
)

// Receipt is what is remembered about a delivered message
type Receipt struct {
	MessageID   string    `json:"messageId"`
	RecipientID string    `json:"recipientId"`
	RemoteID    string    `json:"remoteMessageId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// ReceiptStore keeps short-lived delivery receipts
type ReceiptStore interface {
	StoreDelivered(ctx context.Context, receipt Receipt) error
	GetDelivered(ctx context.Context, messageID string) (*Receipt, error)
	Ping(ctx context.Context) error
}
