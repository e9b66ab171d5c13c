package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"whispra-server/internal/db"
	"whispra-server/internal/models"
	"whispra-server/pkg/logger"

	"go.uber.org/zap"
)

// Profile is a user together with their message statistics
type Profile struct {
	User  *models.User
	Stats models.MessageStats
}

// UserService provides business logic for recipients
type UserService struct {
	users    db.UserRepository
	messages db.MessageRepository
	defaults models.UserSettings
}

// NewUserService creates a new UserService instance
func NewUserService(users db.UserRepository, messages db.MessageRepository) *UserService {
	return &UserService{
		users:    users,
		messages: messages,
		defaults: models.DefaultUserSettings(),
	}
}

// Connect opts username in and links it to chatID. Repeating the call is
// harmless; a changed chat id replaces the stored one.
func (s *UserService) Connect(ctx context.Context, username, chatID string) (*models.User, error) {
	username = strings.TrimSpace(username)
	chatID = strings.TrimSpace(chatID)
	if username == "" || chatID == "" {
		return nil, &ValidationError{Message: "Username and chatId are required"}
	}

	user, created, err := s.users.Upsert(ctx, username, chatID, s.defaults)
	if errors.Is(err, db.ErrChatIDTaken) {
		logger.Warn("Chat already linked to another user",
			zap.String("username", username),
			zap.String("chat_id", chatID),
		)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect user: %w", err)
	}

	if created {
		logger.Info("User connected", zap.String("username", user.Username))
	} else {
		logger.Debug("User reconnected", zap.String("username", user.Username))
	}

	return user, nil
}

// Profile returns the public profile of username with statistics over every
// message ever addressed to them
func (s *UserService) Profile(ctx context.Context, username string) (*Profile, error) {
	if username == "" {
		return nil, &ValidationError{Message: "Username is required"}
	}

	user, err := s.users.FindByIdentifier(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	stats, err := s.messages.AggregateStats(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message statistics: %w", err)
	}

	return &Profile{User: user, Stats: stats}, nil
}
