package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"whispra-server/internal/cache"
	"whispra-server/internal/db"
	"whispra-server/internal/delivery"
	"whispra-server/internal/models"
	"whispra-server/pkg/logger"

	"go.uber.org/zap"
)

// RelayRequest is one anonymous submission addressed to a recipient
type RelayRequest struct {
	Identifier string
	Text       string
	IPAddress  string
	UserAgent  string
}

// RelayResult is returned after a successful delivery
type RelayResult struct {
	Message      *models.Message
	MessageCount int64
}

// RelayService validates, persists and delivers anonymous messages
type RelayService struct {
	users    db.UserRepository
	messages db.MessageRepository
	gateway  delivery.Gateway
	receipts cache.ReceiptStore
}

// NewRelayService creates a new RelayService
func NewRelayService(users db.UserRepository, messages db.MessageRepository, gateway delivery.Gateway) *RelayService {
	return &RelayService{
		users:    users,
		messages: messages,
		gateway:  gateway,
	}
}

// WithReceipts records delivered messages in store
func (s *RelayService) WithReceipts(store cache.ReceiptStore) *RelayService {
	s.receipts = store
	return s
}

// Relay runs one submission through validation, persistence and delivery.
// The message row exists before the gateway is called, and its status
// always reflects the gateway's answer.
func (s *RelayService) Relay(ctx context.Context, req RelayRequest) (*RelayResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, &ValidationError{Message: "Message text is required"}
	}

	user, err := s.users.FindByIdentifier(ctx, req.Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to find recipient: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.AcceptsMessages() {
		return nil, ErrNotAccepting
	}
	if user.ExceedsLimit(utf8.RuneCountInString(text)) {
		return nil, &TooLongError{Limit: user.Settings.MessageLimit}
	}

	// The record keeps the trimmed text; the recipient gets what was typed
	msg, err := s.messages.Create(ctx, user.ID, text, models.MessageMetadata{
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	receipt, sendErr := s.gateway.Send(ctx, user.ChatID, req.Text)

	// Bookkeeping must land even if the caller went away mid-delivery
	bookCtx := context.WithoutCancel(ctx)

	if sendErr != nil {
		if err := s.messages.SetStatus(bookCtx, msg, models.StatusFailed); err != nil {
			logger.Error("Failed to mark message as failed",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
		logger.Warn("Message delivery failed",
			zap.String("message_id", msg.ID),
			zap.String("recipient", user.Username),
			zap.Error(sendErr),
		)

		var deliveryErr *delivery.DeliveryError
		if errors.As(sendErr, &deliveryErr) {
			return nil, sendErr
		}
		return nil, &delivery.DeliveryError{ChatID: user.ChatID, Err: sendErr}
	}

	// The recipient already has the text from here on; failures below are
	// logged and the request still succeeds
	if err := s.messages.SetStatus(bookCtx, msg, models.StatusDelivered); err != nil {
		logger.Error("Failed to mark message as delivered",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}

	previous := user.MessageCount
	if err := s.users.IncrementMessageCount(bookCtx, user); err != nil {
		logger.Error("Failed to increment message count",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		user.MessageCount = previous + 1
	}

	s.storeReceipt(bookCtx, msg, receipt)

	logger.Info("Message delivered",
		zap.String("message_id", msg.ID),
		zap.String("recipient", user.Username),
		zap.Int64("message_count", user.MessageCount),
	)

	return &RelayResult{Message: msg, MessageCount: user.MessageCount}, nil
}

func (s *RelayService) storeReceipt(ctx context.Context, msg *models.Message, receipt *delivery.Receipt) {
	if s.receipts == nil || receipt == nil {
		return
	}

	err := s.receipts.StoreDelivered(ctx, cache.Receipt{
		MessageID:   msg.ID,
		RecipientID: msg.RecipientID,
		RemoteID:    receipt.RemoteID,
		DeliveredAt: receipt.SentAt,
	})
	if err != nil {
		logger.Warn("Failed to cache delivery receipt",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}
