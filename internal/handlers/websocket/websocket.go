// internal/handlers/websocket/websocket.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"pipx-client/internal/middleware"
	"pipx-client/internal/pkg/jwt"
	"pipx-client/internal/pkg/response"
	ws "pipx-client/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Native clients send no Origin; the mock accepts any.
		return true
	},
}

// TokenValidator is satisfied by *middleware.AuthMiddleware.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*jwt.Claims, error)
}

type WebSocketHandler struct {
	hub       *ws.Hub
	validator TokenValidator
	logger    *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, validator TokenValidator, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		hub:       hub,
		validator: validator,
		logger:    logger,
	}
}

// HandleConnection authenticates the handshake and hands the connection to
// the hub. A missing, expired or logged out token is refused with 401
// before the upgrade.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	token := middleware.ExtractToken(c)
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "missing authentication token", ws.ErrUnauthorized)
		return
	}

	claims, err := h.validator.Validate(c.Request.Context(), token)
	if err != nil {
		h.logger.Info("websocket authentication failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		response.Error(c, http.StatusUnauthorized, "authentication failed", err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	device := claims.Device
	if d := c.GetHeader("X-Device-ID"); d != "" {
		device = d
	}
	peer := ws.NewPeer(h.hub, conn, &ws.PeerAuth{
		UserID:    claims.UserID,
		UserType:  claims.UserType,
		SessionID: claims.ID,
		Device:    device,
	})

	if !h.hub.Add(peer) {
		conn.Close()
		return
	}

	go peer.WritePump()
	go peer.ReadPump()
}

// GetStats returns connection statistics
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"total_connections": h.hub.TotalClients(),
		"timestamp":         time.Now(),
	}

	response.Success(c, http.StatusOK, "WebSocket stats", stats)
}
