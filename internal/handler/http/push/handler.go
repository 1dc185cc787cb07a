package push

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/middleware"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/logger"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/response"
)

// TokenStore keeps device tokens per live recipient id
type TokenStore interface {
	Add(ctx context.Context, recipientID, token string) error
	Remove(ctx context.Context, recipientID string, tokens ...string) error
}

// Handler handles push notification HTTP requests
type Handler struct {
	tokens TokenStore
}

// NewHandler creates a new push notification handler
func NewHandler(tokens TokenStore) *Handler {
	return &Handler{
		tokens: tokens,
	}
}

// TokenRequest carries an FCM registration token
type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// RegisterToken registers a push token for the caller's chat user
// @Summary Register push notification token
// @Tags Push
// @Accept json
// @Produce json
// @Param RCUserId header string true "Rocket.Chat user id"
// @Param request body TokenRequest true "Token registration data"
// @Success 200 {object} map[string]interface{}
// @Router /push/tokens [post]
func (h *Handler) RegisterToken(c *gin.Context) {
	recipientID, ok := h.recipient(c)
	if !ok {
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.tokens.Add(c.Request.Context(), recipientID, req.Token); err != nil {
		logger.FromContext(c.Request.Context()).Error("Failed to register push token",
			zap.String("recipient_id", recipientID),
			zap.Error(err))
		response.InternalError(c, "Failed to register token")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Token registered successfully",
	})
}

// UnregisterToken removes a push token
// @Summary Unregister push notification token
// @Tags Push
// @Router /push/tokens [delete]
func (h *Handler) UnregisterToken(c *gin.Context) {
	recipientID, ok := h.recipient(c)
	if !ok {
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.tokens.Remove(c.Request.Context(), recipientID, req.Token); err != nil {
		logger.FromContext(c.Request.Context()).Error("Failed to unregister push token",
			zap.String("recipient_id", recipientID),
			zap.Error(err))
		response.InternalError(c, "Failed to unregister token")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Token unregistered successfully",
	})
}

// Invitations are addressed by chat user id, so tokens are stored under it.
func (h *Handler) recipient(c *gin.Context) (string, bool) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return "", false
	}
	if caller.RCUserID == "" {
		response.ValidationError(c, "RCUserId header is required")
		return "", false
	}
	return caller.RCUserID, true
}

// RegisterRoutes mounts the token endpoints behind authn
func (h *Handler) RegisterRoutes(r gin.IRouter, authn gin.HandlerFunc) {
	tokens := r.Group("/push/tokens", authn)
	tokens.POST("", h.RegisterToken)
	tokens.DELETE("", h.UnregisterToken)
}
