package handler

import (
	"context"
	"strings"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/pkg/serverutils"
	internalWS "rag-chat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type ChatSocketHandler struct {
	hub    *internalWS.Hub
	turns  internalWS.TurnStreamer
	ctx    context.Context
	logger logger.ILogger
}

// NewChatSocketHandler serves sockets until ctx is done.
func NewChatSocketHandler(ctx context.Context, hub *internalWS.Hub, turns internalWS.TurnStreamer, log logger.ILogger) *ChatSocketHandler {
	return &ChatSocketHandler{
		hub:    hub,
		turns:  turns,
		ctx:    ctx,
		logger: log,
	}
}

// ServeWs upgrades the request and binds the socket to one session. Without
// a session_id query parameter a new session id is assigned.
func (h *ChatSocketHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if len(sessionID) > 64 {
		return c.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "session_id is too long"))
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("ChatSocketHandler", "Starting WebSocket session", map[string]interface{}{"session_id": sessionID})
		internalWS.ServeWs(h.ctx, h.hub, h.turns, conn, sessionID)
		h.logger.Info("ChatSocketHandler", "WebSocket session ended", map[string]interface{}{"session_id": sessionID})
	})(c)
}

func (h *ChatSocketHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/chat/v1/ws", h.ServeWs)
}
