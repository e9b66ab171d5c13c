package handlers

import (
	"net/http"

	"whispra-server/internal/models"
	"whispra-server/internal/services"
	"whispra-server/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RelayHandler handles opt-in, message submission and profile requests
type RelayHandler struct {
	relayService RelayServiceInterface
	userService  UserServiceInterface
	errors       errorResponder
}

// NewRelayHandler creates a new relay handler. In development, internal
// error details are included in responses.
func NewRelayHandler(relayService RelayServiceInterface, userService UserServiceInterface, development bool) *RelayHandler {
	return &RelayHandler{
		relayService: relayService,
		userService:  userService,
		errors:       errorResponder{development: development},
	}
}

// Connect handles opt-in from the web frontend (POST /connect)
// Creates the user or relinks it to the given chat
func (h *RelayHandler) Connect(c *gin.Context) {
	var req models.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid connect request", zap.Error(err))
		if req.Username == "" || req.ChatID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username and chatId are required"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.userService.Connect(c.Request.Context(), req.Username, req.ChatID)
	if err != nil {
		logger.Warn("Connect failed",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		h.errors.fail(c, err, "Failed to connect user")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User connected successfully",
		"data": gin.H{
			"username":     user.Username,
			"createdAt":    user.CreatedAt,
			"messageCount": user.MessageCount,
		},
	})
}

// SendMessage relays an anonymous message (POST /message/:username)
func (h *RelayHandler) SendMessage(c *gin.Context) {
	username := c.Param("username")

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid message request", zap.String("username", username), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	result, err := h.relayService.Relay(c.Request.Context(), services.RelayRequest{
		Identifier: username,
		Text:       req.Text,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		h.errors.fail(c, err, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Message sent successfully",
		"data": gin.H{
			"messageCount": result.MessageCount,
		},
	})
}

// GetUser returns the public profile and statistics (GET /user/:username)
func (h *RelayHandler) GetUser(c *gin.Context) {
	profile, err := h.userService.Profile(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.errors.fail(c, err, "Internal server error")
		return
	}

	user := profile.User
	c.JSON(http.StatusOK, gin.H{
		"username":      user.Username,
		"createdAt":     user.CreatedAt,
		"messageCount":  user.MessageCount,
		"lastMessageAt": user.LastMessageAt,
		"settings":      user.Settings,
		"statistics": gin.H{
			"total":     profile.Stats.Total,
			"delivered": profile.Stats.Delivered,
			"failed":    profile.Stats.Failed,
		},
	})
}
