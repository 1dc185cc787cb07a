package video

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/webhook"
	"go.uber.org/zap"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/middleware"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/service/video"
	apperrors "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/errors"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/logger"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/response"
)

// LiveKit event announcing that a room has ended
const eventRoomFinished = "room_finished"

// CallService is the call orchestration the handler exposes
type CallService interface {
	StartCall(ctx context.Context, caller *domain.Caller, input *video.StartCallInput) (*domain.VideoCallSession, error)
	StopCall(ctx context.Context, caller *domain.Caller, roomID string) error
	StopCallByProvider(ctx context.Context, roomID string) error
	RejectCall(ctx context.Context, caller *domain.Caller, input *video.RejectCallInput) error
}

// WebhookReceiver authenticates and decodes a room provider callback
type WebhookReceiver interface {
	Receive(r *http.Request) (*livekit.WebhookEvent, error)
}

// LiveKitReceiver verifies webhooks signed with the LiveKit API key pair
type LiveKitReceiver struct {
	provider auth.KeyProvider
}

// NewLiveKitReceiver creates a receiver for the given API key pair
func NewLiveKitReceiver(apiKey, apiSecret string) *LiveKitReceiver {
	return &LiveKitReceiver{provider: auth.NewSimpleKeyProvider(apiKey, apiSecret)}
}

// Receive validates the signature header and decodes the event
func (r *LiveKitReceiver) Receive(req *http.Request) (*livekit.WebhookEvent, error) {
	event, err := webhook.ReceiveWebhookEvent(req, r.provider)
	if err != nil {
		return nil, apperrors.UnauthorizedError("Invalid webhook signature").WithCause(err)
	}
	return event, nil
}

// Handler handles video call HTTP requests
type Handler struct {
	videoService CallService
	webhooks     WebhookReceiver
}

// NewHandler creates a new video handler. A nil receiver disables the
// provider webhook.
func NewHandler(videoService CallService, webhooks WebhookReceiver) *Handler {
	return &Handler{
		videoService: videoService,
		webhooks:     webhooks,
	}
}

// StartCallRequest represents call start request
type StartCallRequest struct {
	SessionID            *int64 `json:"sessionId"`
	GroupChatID          *int64 `json:"groupChatId"`
	InitiatorDisplayName string `json:"initiatorDisplayName"`
}

// StartCallResponse carries the moderator join URL
type StartCallResponse struct {
	ModeratorVideoCallURL string `json:"moderatorVideoCallUrl"`
}

// RejectCallRequest represents a declined call invitation
type RejectCallRequest struct {
	RCGroupID         string `json:"rcGroupId" binding:"required"`
	InitiatorUsername string `json:"initiatorUsername" binding:"required"`
	InitiatorRCUserID string `json:"initiatorRcUserId" binding:"required"`
}

// StartCall starts a one-to-one or group call
// POST /videocalls/new
func (h *Handler) StartCall(c *gin.Context) {
	var req StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	session, err := h.videoService.StartCall(c.Request.Context(), caller, &video.StartCallInput{
		SessionID:            req.SessionID,
		GroupChatID:          req.GroupChatID,
		InitiatorDisplayName: req.InitiatorDisplayName,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, StartCallResponse{
		ModeratorVideoCallURL: session.URLs.ModeratorVideoURL,
	})
}

// StopCall ends the call of a room
// POST /videocalls/stop/:roomId
func (h *Handler) StopCall(c *gin.Context) {
	roomID := c.Param("roomId")
	if roomID == "" {
		response.ValidationError(c, "Room ID is required")
		return
	}

	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	if err := h.videoService.StopCall(c.Request.Context(), caller, roomID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"message": "Call stopped",
	})
}

// RejectCall tells the initiator that the invitation was declined
// POST /videocalls/reject
func (h *Handler) RejectCall(c *gin.Context) {
	var req RejectCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	err := h.videoService.RejectCall(c.Request.Context(), caller, &video.RejectCallInput{
		RCGroupID:         req.RCGroupID,
		InitiatorUsername: req.InitiatorUsername,
		InitiatorRCUserID: req.InitiatorRCUserID,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Call rejected",
	})
}

// ProviderWebhook stops calls whose room the provider has finished.
// Other events are acknowledged and ignored.
// POST /videocalls/provider/webhook
func (h *Handler) ProviderWebhook(c *gin.Context) {
	if h.webhooks == nil {
		c.Status(http.StatusNotFound)
		return
	}

	event, err := h.webhooks.Receive(c.Request)
	if err != nil {
		logger.FromContext(c.Request.Context()).Warn("Rejected provider webhook", zap.Error(err))
		if apperrors.HasCode(err, apperrors.ErrCodeUnauthorized) {
			response.FromError(c, err)
			return
		}
		response.Unauthorized(c, "Invalid webhook signature")
		return
	}

	if event.GetEvent() != eventRoomFinished || event.GetRoom() == nil {
		c.Status(http.StatusOK)
		return
	}

	roomID := event.GetRoom().GetName()
	if err := h.videoService.StopCallByProvider(c.Request.Context(), roomID); err != nil {
		logger.FromContext(c.Request.Context()).Error("Failed to stop call for finished room",
			zap.String("room_id", roomID),
			zap.Error(err))
		response.FromError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// RegisterRoutes mounts the call endpoints. authn validates the caller;
// consultant restricts an endpoint to consultants.
func (h *Handler) RegisterRoutes(r gin.IRouter, authn, consultant gin.HandlerFunc) {
	calls := r.Group("/videocalls")
	calls.POST("/provider/webhook", h.ProviderWebhook)

	authed := calls.Group("", authn)
	authed.POST("/new", consultant, h.StartCall)
	authed.POST("/stop/:roomId", consultant, h.StopCall)
	authed.POST("/reject", h.RejectCall)
}
