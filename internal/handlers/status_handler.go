package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"whispra-server/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const probeTimeout = 10 * time.Second

// StatusOptions configures the diagnostic endpoints
type StatusOptions struct {
	Environment string
	Version     string
	Service     string
	Storage     StorageProbe
	Bot         BotProbe   // nil when the bot is disabled
	Cache       CacheProbe // nil when no cache is configured
}

// StatusHandler serves health and diagnostic endpoints
type StatusHandler struct {
	opts   StatusOptions
	errors errorResponder
	now    func() time.Time
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(opts StatusOptions) *StatusHandler {
	return &StatusHandler{
		opts:   opts,
		errors: errorResponder{development: opts.Environment == "development"},
		now:    time.Now,
	}
}

// Root reports whether the API is up (GET /)
func (h *StatusHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     "Welcome to the API",
		"status":      "ok",
		"database":    h.databaseState(),
		"environment": h.opts.Environment,
	})
}

// Test reports configuration state (GET /test)
func (h *StatusHandler) Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     "Backend is working!",
		"timestamp":   h.now().UTC().Format(time.RFC3339Nano),
		"environment": h.opts.Environment,
		"database":    h.databaseState(),
		"services": gin.H{
			"telegram": configured(h.opts.Bot != nil),
			"database": configured(h.opts.Storage != nil),
			"cache":    configured(h.opts.Cache != nil),
		},
	})
}

// TestDB connects if needed and pings the database (GET /test-db)
func (h *StatusHandler) TestDB(c *gin.Context) {
	if h.opts.Storage == nil {
		h.probeFailed(c, "Database test failed", errors.New("database is not configured"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	if _, err := h.opts.Storage.Ensure(ctx); err != nil {
		h.probeFailed(c, "Database test failed", err)
		return
	}
	if err := h.opts.Storage.Ping(ctx); err != nil {
		h.probeFailed(c, "Database test failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"database": gin.H{
			"connected": true,
			"driver":    h.opts.Storage.DriverName(),
		},
	})
}

// TestBot asks the Bot API for the bot identity (GET /test-bot)
func (h *StatusHandler) TestBot(c *gin.Context) {
	if h.opts.Bot == nil {
		h.probeFailed(c, "Bot test failed", errors.New("telegram bot is disabled"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	info, err := h.opts.Bot.GetMe(ctx)
	if err != nil {
		h.probeFailed(c, "Bot test failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"bot":    info,
	})
}

// Health is the liveness check (GET /health)
func (h *StatusHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"time":    h.now().UTC(),
		"version": h.opts.Version,
		"service": h.opts.Service,
	}

	if h.opts.Cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := h.opts.Cache.Ping(ctx); err != nil {
			logger.Warn("Cache ping failed", zap.Error(err))
			body["cache"] = "unreachable"
		} else {
			body["cache"] = "ok"
		}
	}

	c.JSON(http.StatusOK, body)
}

// NotFound answers unknown routes
func (h *StatusHandler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}

func (h *StatusHandler) probeFailed(c *gin.Context, msg string, err error) {
	logger.Error(msg, zap.Error(err))

	body := gin.H{"status": "error", "error": msg}
	if h.errors.development {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

func (h *StatusHandler) databaseState() string {
	if h.opts.Storage != nil && h.opts.Storage.Connected() {
		return "connected"
	}
	return "disconnected"
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
