package db

import (
	"context"
	"fmt"

	"whispra-server/internal/models"
)

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	Create(ctx context.Context, recipientID, text string, metadata models.MessageMetadata) (*models.Message, error)
	SetStatus(ctx context.Context, msg *models.Message, status models.MessageStatus) error
	AggregateStats(ctx context.Context, recipientID string) (models.MessageStats, error)
}

type messageRepository struct {
	conn Connector
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(conn Connector) MessageRepository {
	return &messageRepository{conn: conn}
}

// Create stores a pending message for the recipient
func (r *messageRepository) Create(ctx context.Context, recipientID, text string, metadata models.MessageMetadata) (*models.Message, error) {
	if recipientID == "" {
		return nil, fmt.Errorf("recipient ID cannot be empty")
	}
	if text == "" {
		return nil, fmt.Errorf("message text cannot be empty")
	}

	handle, err := r.conn.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	msg := models.NewMessage(recipientID, text, metadata)
	_, err = handle.ExecContext(ctx, handle.Rebind(`
		INSERT INTO messages (id, recipient_id, text, created_at, ip_address, user_agent, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`),
		msg.ID,
		msg.RecipientID,
		msg.Text,
		toMillis(msg.CreatedAt),
		msg.Metadata.IPAddress,
		msg.Metadata.UserAgent,
		string(msg.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return msg, nil
}

// SetStatus moves a pending message to a terminal status exactly once
func (r *messageRepository) SetStatus(ctx context.Context, msg *models.Message, status models.MessageStatus) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if !msg.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrStatusFinal, msg.Status, status)
	}

	handle, err := r.conn.Ensure(ctx)
	if err != nil {
		return err
	}

	// The status guard keeps the transition one-way even across processes
	result, err := handle.ExecContext(ctx, handle.Rebind(`
		UPDATE messages SET status = ?
		WHERE id = ? AND status = ?
	`), string(status), msg.ID, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: message %s is not pending", ErrStatusFinal, msg.ID)
	}

	msg.Status = status
	return nil
}

// AggregateStats counts all messages ever created for the recipient by status
func (r *messageRepository) AggregateStats(ctx context.Context, recipientID string) (models.MessageStats, error) {
	var stats models.MessageStats
	if recipientID == "" {
		return stats, fmt.Errorf("recipient ID cannot be empty")
	}

	handle, err := r.conn.Ensure(ctx)
	if err != nil {
		return stats, err
	}

	var row struct {
		Total     int64 `db:"total"`
		Delivered int64 `db:"delivered"`
		Failed    int64 `db:"failed"`
	}
	err = handle.GetContext(ctx, &row, handle.Rebind(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'delivered' THEN 1 ELSE 0 END), 0) AS delivered,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed
		FROM messages
		WHERE recipient_id = ?
	`), recipientID)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate message stats: %w", err)
	}

	stats.Total = row.Total
	stats.Delivered = row.Delivered
	stats.Failed = row.Failed
	return stats, nil
}
