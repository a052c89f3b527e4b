package handlers

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/citizenhub/complaint-service/internal/auth"
	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/realtime"
)

const wsSessionKey = "ws_session"

// WSHandler upgrades authenticated requests onto the propagation hub.
type WSHandler struct {
	hub    *realtime.Hub
	auth   *auth.AuthMiddleware
	ctx    context.Context
	logger *zap.Logger
}

// NewWSHandler constructs handler. ctx bounds every connection's lifetime.
func NewWSHandler(ctx context.Context, hub *realtime.Hub, authMiddleware *auth.AuthMiddleware, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{hub: hub, auth: authMiddleware, ctx: ctx, logger: logger}
}

// Upgrade authenticates the session token before the protocol switch.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	principal, err := h.auth.Authenticate(c.UserContext(), auth.ExtractToken(c))
	if err != nil {
		return err
	}
	c.Locals(wsSessionKey, *principal.Session)
	return c.Next()
}

// Serve returns the WebSocket handler bound to the hub.
func (h *WSHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		session, ok := conn.Locals(wsSessionKey).(domain.Session)
		if !ok {
			_ = conn.Close()
			return
		}
		if err := h.hub.Serve(h.ctx, conn, session); err != nil {
			h.logger.Debug("realtime connection ended", zap.String("user_id", session.User.ID), zap.Error(err))
		}
	})
}
