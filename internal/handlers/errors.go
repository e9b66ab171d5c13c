package handlers

import (
	"errors"
	"net/http"

	"whispra-server/internal/delivery"
	"whispra-server/internal/services"
	"whispra-server/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorResponder writes error bodies; details are only echoed in development
type errorResponder struct {
	development bool
}

// respond writes {"error": msg, "details": err} with the given status
func (r errorResponder) respond(c *gin.Context, status int, msg string, err error) {
	body := gin.H{"error": msg}
	if r.development && err != nil {
		body["details"] = err.Error()
	}
	c.JSON(status, body)
}

// fail classifies a service error and writes the matching response.
// fallback is the message used for unexpected internal errors.
func (r errorResponder) fail(c *gin.Context, err error, fallback string) {
	var deliveryErr *delivery.DeliveryError

	switch {
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, services.ErrNotAccepting):
		c.JSON(http.StatusForbidden, gin.H{"error": "User is not accepting messages"})
	case errors.Is(err, services.ErrChatIDTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Chat is already linked to another user"})
	case errors.As(err, &deliveryErr):
		r.respond(c, http.StatusInternalServerError, "Failed to send message", deliveryErr.Err)
	case errors.Is(err, services.ErrStorageUnavailable):
		logger.Error("Storage unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		r.respond(c, http.StatusInternalServerError, fallback, err)
	default:
		logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		r.respond(c, http.StatusInternalServerError, fallback, err)
	}
}
