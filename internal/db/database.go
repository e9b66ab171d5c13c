package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"whispra-server/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "pgx"

	// DefaultMaxRetries is the number of connection attempts before giving up
	DefaultMaxRetries = 5
	// DefaultRetryDelay is the fixed wait between connection attempts
	DefaultRetryDelay = 3 * time.Second
)

var (
	// ErrUnavailable indicates the database could not be reached
	ErrUnavailable = errors.New("database unavailable")

	// ErrClosed indicates the Manager was closed
	ErrClosed = errors.New("database manager is closed")
)

// Connector hands out a live database handle, connecting on demand
type Connector interface {
	Ensure(ctx context.Context) (*sqlx.DB, error)
}

// Options configures a Manager
type Options struct {
	DSN        string
	MaxRetries int
	RetryDelay time.Duration
}

// Manager lazily opens and caches the process-wide database handle.
// Concurrent callers share a single in-flight connection attempt.
type Manager struct {
	opts Options
	open func(ctx context.Context, dsn string) (*sqlx.DB, error)

	mu     sync.RWMutex
	handle *sqlx.DB
	closed bool
	group  singleflight.Group
}

// NewManager creates a Manager; no connection is made until Ensure
func NewManager(opts Options) (*Manager, error) {
	if opts.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = DefaultRetryDelay
	}

	return &Manager{opts: opts, open: Open}, nil
}

// Ensure returns the cached handle, connecting first if there is none.
// After MaxRetries failed attempts it returns an error wrapping ErrUnavailable.
func (m *Manager) Ensure(ctx context.Context) (*sqlx.DB, error) {
	handle, closed := m.state()
	if closed {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ErrClosed)
	}
	if handle != nil {
		return handle, nil
	}

	// The shared attempt outlives any single caller's cancellation
	attemptCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan("connect", func() (interface{}, error) {
		if handle := m.Current(); handle != nil {
			return handle, nil
		}

		handle, err := m.connectWithRetry(attemptCtx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			// Close ran while connecting
			if err := handle.Close(); err != nil {
				logger.Warn("Failed to close late database handle", zap.Error(err))
			}
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, ErrClosed)
		}
		m.handle = handle
		return handle, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*sqlx.DB), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	}
}

func (m *Manager) connectWithRetry(ctx context.Context) (*sqlx.DB, error) {
	var lastErr error

	for attempt := 1; attempt <= m.opts.MaxRetries; attempt++ {
		handle, err := m.open(ctx, m.opts.DSN)
		if err == nil {
			logger.Info("Database connected",
				zap.String("driver", driverFor(m.opts.DSN)),
				zap.Int("attempt", attempt),
			)
			return handle, nil
		}
		lastErr = err

		logger.Warn("Database connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", m.opts.MaxRetries),
			zap.Error(err),
		)

		if attempt == m.opts.MaxRetries {
			break
		}

		timer := time.NewTimer(m.opts.RetryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, m.opts.MaxRetries, lastErr)
}

func (m *Manager) state() (*sqlx.DB, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle, m.closed
}

// Current returns the cached handle or nil when not connected
func (m *Manager) Current() *sqlx.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle
}

// Connected reports whether a handle is cached
func (m *Manager) Connected() bool {
	return m.Current() != nil
}

// DriverName reports the driver selected for the configured DSN
func (m *Manager) DriverName() string {
	return driverFor(m.opts.DSN)
}

// Ping verifies the cached handle is still usable
func (m *Manager) Ping(ctx context.Context) error {
	handle := m.Current()
	if handle == nil {
		return fmt.Errorf("%w: not connected", ErrUnavailable)
	}
	if err := handle.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Close releases the cached handle. Ensure fails with ErrClosed afterwards,
// and a connection attempt still in flight is closed when it completes.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.handle == nil {
		return nil
	}
	err := m.handle.Close()
	m.handle = nil
	return err
}

// Open connects to the database named by dsn and bootstraps the schema
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	driver := driverFor(dsn)

	handle, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// sqlite serializes writers; a single connection avoids "database is locked"
	if driver == driverSQLite {
		handle.SetMaxOpenConns(1)
	}

	if err := handle.PingContext(ctx); err != nil {
		if closeErr := handle.Close(); closeErr != nil {
			return nil, fmt.Errorf("ping failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	if driver == driverSQLite {
		if _, err := handle.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = handle.Close()
			return nil, err
		}
	}

	if err := Migrate(ctx, handle); err != nil {
		if closeErr := handle.Close(); closeErr != nil {
			return nil, fmt.Errorf("create tables failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	return handle, nil
}

// Migrate creates the tables and indexes if they do not exist
func Migrate(ctx context.Context, handle *sqlx.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			chat_id TEXT NOT NULL UNIQUE,
			created_at BIGINT NOT NULL,
			message_count BIGINT NOT NULL DEFAULT 0,
			last_message_at BIGINT,
			allow_messages BOOLEAN NOT NULL DEFAULT TRUE,
			message_limit INTEGER NOT NULL DEFAULT 1000
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			recipient_id TEXT NOT NULL REFERENCES users(id),
			text TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'delivered', 'failed'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_recipient_status ON messages(recipient_id, status)`,
	}

	for _, query := range queries {
		if _, err := handle.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// Static wraps an already open handle as a Connector
func Static(handle *sqlx.DB) Connector {
	return staticConnector{handle: handle}
}

type staticConnector struct {
	handle *sqlx.DB
}

func (s staticConnector) Ensure(context.Context) (*sqlx.DB, error) {
	if s.handle == nil {
		return nil, fmt.Errorf("%w: no handle", ErrUnavailable)
	}
	return s.handle, nil
}

func driverFor(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return driverPostgres
	}
	return driverSQLite
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
