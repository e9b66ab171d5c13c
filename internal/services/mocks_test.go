package services

import (
	"context"
	"testing"

	"whispra-server/internal/cache"
	"whispra-server/internal/db"
	"whispra-server/internal/delivery"
	"whispra-server/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGateway is a mock implementation of delivery.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Send(ctx context.Context, chatID, text string) (*delivery.Receipt, error) {
	args := m.Called(ctx, chatID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*delivery.Receipt), args.Error(1)
}

// MockUserRepository is a mock implementation of db.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByIdentifier(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Upsert(ctx context.Context, username, chatID string, defaults models.UserSettings) (*models.User, bool, error) {
	args := m.Called(ctx, username, chatID, defaults)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.User), args.Bool(1), args.Error(2)
}

func (m *MockUserRepository) IncrementMessageCount(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockMessageRepository is a mock implementation of db.MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, recipientID, text string, metadata models.MessageMetadata) (*models.Message, error) {
	args := m.Called(ctx, recipientID, text, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageRepository) SetStatus(ctx context.Context, msg *models.Message, status models.MessageStatus) error {
	args := m.Called(ctx, msg, status)
	return args.Error(0)
}

func (m *MockMessageRepository) AggregateStats(ctx context.Context, recipientID string) (models.MessageStats, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(models.MessageStats), args.Error(1)
}

// MockReceiptStore is a mock implementation of cache.ReceiptStore
type MockReceiptStore struct {
	mock.Mock
}

func (m *MockReceiptStore) StoreDelivered(ctx context.Context, receipt cache.Receipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

func (m *MockReceiptStore) GetDelivered(ctx context.Context, messageID string) (*cache.Receipt, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cache.Receipt), args.Error(1)
}

func (m *MockReceiptStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// setupTestStore opens a migrated in-memory database for service tests
func setupTestStore(t *testing.T) (*sqlx.DB, db.UserRepository, db.MessageRepository) {
	t.Helper()

	handle, err := db.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })

	conn := db.Static(handle)
	return handle, db.NewUserRepository(conn), db.NewMessageRepository(conn)
}

func countMessages(t *testing.T, handle *sqlx.DB) int {
	t.Helper()

	var n int
	require.NoError(t, handle.Get(&n, `SELECT COUNT(*) FROM messages`))
	return n
}
