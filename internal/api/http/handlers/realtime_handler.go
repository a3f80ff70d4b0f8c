package handlers

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/realtime"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// RealtimeHandler upgrades authenticated requests to WebSocket clients.
type RealtimeHandler struct {
	ctx     context.Context
	hub     *realtime.Hub
	gateway realtime.Gateway
	opts    realtime.ClientOptions
	logger  *zap.Logger
}

// NewRealtimeHandler constructs handler. ctx bounds the lifetime of every
// socket-triggered service call.
func NewRealtimeHandler(ctx context.Context, hub *realtime.Hub, gateway realtime.Gateway, opts realtime.ClientOptions, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{ctx: ctx, hub: hub, gateway: gateway, opts: opts, logger: logger}
}

// RequireUpgrade rejects plain HTTP requests to the socket endpoint.
func (h *RealtimeHandler) RequireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// Upgrade returns the fiber handler for GET /ws.
func (h *RealtimeHandler) Upgrade() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *RealtimeHandler) serve(conn *websocket.Conn) {
	principal, ok := auth.PrincipalFromValue(conn.Locals(auth.PrincipalKey))
	if !ok {
		h.logger.Warn("socket without principal")
		h.rejectConn(conn)
		return
	}
	client := realtime.NewClient(h.hub, conn, principal.User, h.gateway, h.opts, h.logger)
	client.Serve(h.ctx)
}

func (h *RealtimeHandler) rejectConn(conn *websocket.Conn) {
	de := apperrors.ToDomainError(apperrors.NewUnauthorized("user required"))
	payload, err := realtime.Encode(realtime.EventError, realtime.ErrorNotice{Code: de.Code, Message: de.Message})
	if err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
	_ = conn.Close()
}
