package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"whispra-server/internal/config"
	"whispra-server/pkg/logger"

	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(logger.Options{
		Path:    cfg.Logging.Path,
		Level:   cfg.Logging.Level,
		Console: cfg.IsDevelopment(),
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()
	defer logger.Info("Server shutting down")

	// Setup and start server
	app, err := SetupApp(cfg)
	if err != nil {
		logger.Fatal("Failed to setup server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
