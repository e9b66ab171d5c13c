package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"whispra-server/internal/bot"
	"whispra-server/internal/cache"
	"whispra-server/internal/config"
	"whispra-server/internal/db"
	"whispra-server/internal/delivery"
	"whispra-server/internal/handlers"
	"whispra-server/internal/services"
	"whispra-server/pkg/logger"
	"whispra-server/router"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	serviceName     = "whispra-server"
	shutdownTimeout = 5 * time.Second
)

// App is the wired process: HTTP server, bot poller and shared resources
type App struct {
	server  *http.Server
	manager *db.Manager
	poller  *bot.Poller       // nil when the bot is disabled
	cache   *cache.RedisCache // nil when redis is not configured
}

// SetupApp wires every component from cfg. Nothing connects to the
// database yet; Run starts that in the background.
func SetupApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	if cfg.Server.Port < 0 {
		return nil, errors.New("invalid server port")
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	manager, err := db.NewManager(db.Options{
		DSN:        cfg.Database.DSN,
		MaxRetries: cfg.Database.MaxRetries,
		RetryDelay: cfg.Database.RetryDelay.Duration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize repositories
	userRepo := db.NewUserRepository(manager)
	messageRepo := db.NewMessageRepository(manager)

	// Initialize delivery
	var (
		gateway  delivery.Gateway = delivery.Disabled{}
		botProbe handlers.BotProbe
		telegram *delivery.Telegram
	)
	if cfg.Telegram.Enabled {
		telegram, err = delivery.NewTelegram(delivery.TelegramOptions{
			Token:    cfg.Telegram.BotToken,
			Endpoint: cfg.Telegram.APIEndpoint,
			Timeout:  cfg.Telegram.SendTimeout.Duration(),
		})
		if err != nil {
			return nil, err
		}
		gateway = telegram
		botProbe = telegram
	} else {
		logger.Warn("Telegram bot disabled, messages cannot be delivered")
	}

	// Initialize services
	relayService := services.NewRelayService(userRepo, messageRepo, gateway)
	userService := services.NewUserService(userRepo, messageRepo)

	var (
		receipts   *cache.RedisCache
		cacheProbe handlers.CacheProbe
	)
	if cfg.Redis.Addr != "" {
		receipts = cache.Dial(cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL.Duration(),
		})
		relayService.WithReceipts(receipts)
		cacheProbe = receipts
	}

	// Initialize handlers and routes
	relayHandler := handlers.NewRelayHandler(relayService, userService, cfg.IsDevelopment())
	statusHandler := handlers.NewStatusHandler(handlers.StatusOptions{
		Environment: cfg.Environment,
		Version:     version,
		Service:     serviceName,
		Storage:     manager,
		Bot:         botProbe,
		Cache:       cacheProbe,
	})
	r := router.NewRouter(relayHandler, statusHandler, router.Options{
		AllowedOrigins: []string{cfg.Frontend.BaseURL},
		ForceHTTPS:     cfg.Server.ForceHTTPS,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	})

	app := &App{
		server: &http.Server{
			Addr:              cfg.ListenAddr(),
			Handler:           r,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Delivery can take up to the Bot API timeout
			WriteTimeout: cfg.Telegram.SendTimeout.Duration() + 15*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		manager: manager,
		cache:   receipts,
	}

	if telegram != nil {
		dispatcher := bot.NewDispatcher(userService, telegram, cfg.Frontend.BaseURL)
		app.poller = bot.NewPoller(telegram.API(), dispatcher, cfg.Telegram.PollTimeout)
	}

	return app, nil
}

// Run serves HTTP and polls the bot until ctx is done, then releases every
// shared resource
func (a *App) Run(ctx context.Context) error {
	// A listener failure stops the poller too
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Connect eagerly so the first request does not pay for it; requests
	// retry on their own if this fails
	go func() {
		if _, err := a.manager.Ensure(ctx); err != nil {
			logger.Warn("Initial database connection failed", zap.Error(err))
			return
		}
		logger.Info("Database connected", zap.String("driver", a.manager.DriverName()))
	}()

	var wg sync.WaitGroup
	if a.poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.poller.Run(ctx)
		}()
	}

	err := StartServerWithContext(ctx, a.server)
	cancel()

	wg.Wait()
	a.close()
	return err
}

func (a *App) close() {
	if err := a.manager.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
}

// StartServerWithContext starts the HTTP server with a context for shutdown control
func StartServerWithContext(ctx context.Context, srv *http.Server) error {
	errChan := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for context cancellation or a listen failure
	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	// Create a timeout context for shutdown
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
