package ws

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/middleware"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/service/notification"
	apperrors "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/errors"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/logger"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/metrics"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultMaxConnections bounds concurrent live connections per instance
	DefaultMaxConnections = 1000
)

// Subscriber opens pub/sub subscriptions. It returns nil while the store
// is unavailable.
type Subscriber interface {
	SafeSubscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// LiveHub streams live events (call invitations) to connected chat users
type LiveHub struct {
	subscriber Subscriber
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader

	maxConnections int
	semaphore      chan struct{}
}

// NewLiveHub creates a live event hub. An origin of "*" allows any origin.
func NewLiveHub(subscriber Subscriber, allowedOrigins []string, maxConnections int, m *metrics.Metrics) *LiveHub {
	if maxConnections <= 0 {
		maxConnections = DefaultMaxConnections
	}

	return &LiveHub{
		subscriber: subscriber,
		metrics:    m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return false
				}
				return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
		maxConnections: maxConnections,
		semaphore:      make(chan struct{}, maxConnections),
	}
}

// liveClient is one websocket connection bound to a recipient channel
type liveClient struct {
	conn        *websocket.Conn
	pubsub      *redis.PubSub
	recipientID string
	cancel      context.CancelFunc
}

// ServeWS upgrades the request and forwards every event published for the
// caller's chat user id. The id comes from the RCUserId header or, for
// browsers, the rcUserId query parameter.
// GET /live/ws
func (h *LiveHub) ServeWS(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}
	recipientID := caller.RCUserID
	if recipientID == "" {
		recipientID = c.Query("rcUserId")
	}
	if recipientID == "" {
		response.ValidationError(c, "rcUserId is required")
		return
	}

	select {
	case h.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.maxConnections))
		response.Error(c, http.StatusServiceUnavailable, string(apperrors.ErrCodeUpstreamUnavailable), "Server at capacity, please try again later")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := h.subscriber.SafeSubscribe(ctx, notification.LiveChannel(recipientID))
	if pubsub == nil {
		cancel()
		<-h.semaphore
		response.Error(c, http.StatusServiceUnavailable, string(apperrors.ErrCodeUpstreamUnavailable), "Live events unavailable")
		return
	}
	// Confirm the subscription before the upgrade so no event published
	// after the handshake is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		logger.Error("Failed to subscribe to live channel",
			zap.String("recipient_id", recipientID),
			zap.Error(err))
		pubsub.Close()
		cancel()
		<-h.semaphore
		response.Error(c, http.StatusServiceUnavailable, string(apperrors.ErrCodeUpstreamUnavailable), "Live events unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed",
			zap.String("recipient_id", recipientID),
			zap.Error(err))
		pubsub.Close()
		cancel()
		<-h.semaphore
		return
	}

	client := &liveClient{
		conn:        conn,
		pubsub:      pubsub,
		recipientID: recipientID,
		cancel:      cancel,
	}
	h.metrics.IncWebSocketConnections()

	go func() {
		client.writePump(ctx)
		pubsub.Close()
		conn.Close()
		h.metrics.DecWebSocketConnections()
		<-h.semaphore
	}()
	go client.readPump()
}

// readPump only services control frames; clients do not send events
func (c *liveClient) readPump() {
	defer c.cancel()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket connection closed",
					zap.String("recipient_id", c.recipientID),
					zap.Error(err))
			}
			return
		}
	}
}

func (c *liveClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	events := c.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg, ok := <-events:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				logger.Debug("Failed to write live event",
					zap.String("recipient_id", c.recipientID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
