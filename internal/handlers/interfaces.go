package handlers

import (
	"context"

	"whispra-server/internal/delivery"
	"whispra-server/internal/models"
	"whispra-server/internal/services"

	"github.com/jmoiron/sqlx"
)

// RelayServiceInterface defines the contract for relaying anonymous messages
// This interface is used for dependency injection and testing
type RelayServiceInterface interface {
	Relay(ctx context.Context, req services.RelayRequest) (*services.RelayResult, error)
}

// UserServiceInterface defines the contract for recipient operations
// This interface is used for dependency injection and testing
type UserServiceInterface interface {
	Connect(ctx context.Context, username, chatID string) (*models.User, error)
	Profile(ctx context.Context, username string) (*services.Profile, error)
}

// StorageProbe reports on the database connection; *db.Manager satisfies it
type StorageProbe interface {
	Ensure(ctx context.Context) (*sqlx.DB, error)
	Ping(ctx context.Context) error
	Connected() bool
	DriverName() string
}

// BotProbe asks the chat platform who the bot is; *delivery.Telegram satisfies it
type BotProbe interface {
	GetMe(ctx context.Context) (delivery.BotInfo, error)
}

// CacheProbe checks the receipt cache
type CacheProbe interface {
	Ping(ctx context.Context) error
}
