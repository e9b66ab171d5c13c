package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"whispra-server/internal/models"

	"github.com/jmoiron/sqlx"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	FindByIdentifier(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, username, chatID string, defaults models.UserSettings) (*models.User, bool, error)
	IncrementMessageCount(ctx context.Context, user *models.User) error
}

// userRepository implements UserRepository interface
type userRepository struct {
	conn Connector
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(conn Connector) UserRepository {
	return &userRepository{conn: conn}
}

// userRow mirrors the users table
type userRow struct {
	ID            string        `db:"id"`
	Username      string        `db:"username"`
	ChatID        string        `db:"chat_id"`
	CreatedAt     int64         `db:"created_at"`
	MessageCount  int64         `db:"message_count"`
	LastMessageAt sql.NullInt64 `db:"last_message_at"`
	AllowMessages bool          `db:"allow_messages"`
	MessageLimit  int           `db:"message_limit"`
}

func (r userRow) toModel() *models.User {
	user := &models.User{
		ID:           r.ID,
		Username:     r.Username,
		ChatID:       r.ChatID,
		CreatedAt:    fromMillis(r.CreatedAt),
		MessageCount: r.MessageCount,
		Settings: models.UserSettings{
			AllowMessages: r.AllowMessages,
			MessageLimit:  r.MessageLimit,
		},
	}
	if r.LastMessageAt.Valid {
		t := fromMillis(r.LastMessageAt.Int64)
		user.LastMessageAt = &t
	}
	return user
}

const userColumns = `id, username, chat_id, created_at, message_count, last_message_at, allow_messages, message_limit`

// FindByIdentifier retrieves a user by username; nil when absent
func (r *userRepository) FindByIdentifier(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}

	handle, err := r.conn.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	user, err := findUser(ctx, handle, "username", username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID; nil when absent
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	handle, err := r.conn.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	user, err := findUser(ctx, handle, "id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// Upsert creates the user or links an existing one to chatID.
// The returned bool is true when a new row was inserted. A concurrent insert
// of the same username is resolved by reading the winner's row back.
func (r *userRepository) Upsert(ctx context.Context, username, chatID string, defaults models.UserSettings) (*models.User, bool, error) {
	if username == "" {
		return nil, false, fmt.Errorf("username cannot be empty")
	}
	if chatID == "" {
		return nil, false, fmt.Errorf("chat ID cannot be empty")
	}

	handle, err := r.conn.Ensure(ctx)
	if err != nil {
		return nil, false, err
	}

	existing, err := findUser(ctx, handle, "username", username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user by username: %w", err)
	}
	if existing != nil {
		user, err := updateChatID(ctx, handle, existing, chatID)
		return user, false, err
	}

	user := models.NewUser(username, chatID, defaults)
	_, err = handle.ExecContext(ctx, handle.Rebind(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`),
		user.ID,
		user.Username,
		user.ChatID,
		toMillis(user.CreatedAt),
		user.MessageCount,
		nil,
		user.Settings.AllowMessages,
		user.Settings.MessageLimit,
	)
	if err == nil {
		return user, true, nil
	}
	if !isUniqueViolation(err) {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	// Either another request created this username first, or the chat id
	// belongs to a different username
	existing, err = findUser(ctx, handle, "username", username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user by username: %w", err)
	}
	if existing == nil {
		return nil, false, ErrChatIDTaken
	}

	user, err = updateChatID(ctx, handle, existing, chatID)
	return user, false, err
}

// IncrementMessageCount records one successful delivery for the user and
// refreshes MessageCount and LastMessageAt on the passed struct
func (r *userRepository) IncrementMessageCount(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}

	handle, err := r.conn.Ensure(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := handle.ExecContext(ctx, handle.Rebind(`
		UPDATE users
		SET message_count = message_count + 1, last_message_at = ?
		WHERE id = ?
	`), toMillis(now), user.ID)
	if err != nil {
		return fmt.Errorf("failed to increment message count: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	var count int64
	if err := handle.GetContext(ctx, &count, handle.Rebind(`SELECT message_count FROM users WHERE id = ?`), user.ID); err != nil {
		return fmt.Errorf("failed to read message count: %w", err)
	}

	user.MessageCount = count
	user.LastMessageAt = &now
	return nil
}

func findUser(ctx context.Context, handle *sqlx.DB, column, value string) (*models.User, error) {
	var row userRow
	err := handle.GetContext(ctx, &row, handle.Rebind(`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`), value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func updateChatID(ctx context.Context, handle *sqlx.DB, user *models.User, chatID string) (*models.User, error) {
	if user.ChatID == chatID {
		return user, nil
	}

	_, err := handle.ExecContext(ctx, handle.Rebind(`UPDATE users SET chat_id = ? WHERE id = ?`), chatID, user.ID)
	if isUniqueViolation(err) {
		return nil, ErrChatIDTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update chat ID: %w", err)
	}

	user.ChatID = chatID
	return user, nil
}
