package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/internal/service"
	internalWS "rag-chat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	RouteChat = "getChatbotResponse"

	defaultAck      = "Default Response Triggered"
	unknownRouteMsg = "The requested route is not recognized."
)

type ChatSocketHandler struct {
	chatbot service.IChatbotService
	hub     *internalWS.Hub
	auth    *serverutils.Authorizer
	logger  logger.ILogger
}

func NewChatSocketHandler(chatbot service.IChatbotService, hub *internalWS.Hub, auth *serverutils.Authorizer, log logger.ILogger) *ChatSocketHandler {
	return &ChatSocketHandler{
		chatbot: chatbot,
		hub:     hub,
		auth:    auth,
		logger:  log,
	}
}

func (h *ChatSocketHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws", h.Authorize, h.Serve())
}

// Authorize validates the bearer token before the connection is upgraded.
func (h *ChatSocketHandler) Authorize(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	p, err := h.auth.Authorize(serverutils.TokenFromRequest(c))
	if err != nil {
		h.logger.Warn("ChatSocketHandler", "Rejected handshake", map[string]interface{}{"error": err.Error(), "ip": c.IP()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, err.Error()))
	}
	c.Locals("principal", p)
	return c.Next()
}

func (h *ChatSocketHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		p, _ := conn.Locals("principal").(*serverutils.Principal)
		cc := internalWS.NewConnectionContext(uuid.NewString(), p)
		internalWS.ServeWs(h.hub, h, conn, cc)
	})
}

// Dispatch routes one inbound frame. Unknown routes never reach a backend.
func (h *ChatSocketHandler) Dispatch(ctx context.Context, cc internalWS.ConnectionContext, route string, body []byte) internalWS.Response {
	switch route {
	case internalWS.RouteConnect:
		h.logger.Info("ChatSocketHandler", "Connected", map[string]interface{}{"connection_id": cc.ConnectionID, "user_id": cc.UserID})
		return internalWS.Response{StatusCode: http.StatusOK}
	case internalWS.RouteDisconnect:
		h.logger.Info("ChatSocketHandler", "Disconnected", map[string]interface{}{"connection_id": cc.ConnectionID})
		return internalWS.Response{StatusCode: http.StatusOK}
	case internalWS.RouteDefault:
		return jsonResponse(http.StatusOK, dto.RouteAck{Action: defaultAck})
	case RouteChat:
		return h.chat(ctx, cc, body)
	}
	h.logger.Warn("ChatSocketHandler", "Unknown route", map[string]interface{}{"connection_id": cc.ConnectionID, "route": route})
	return jsonResponse(http.StatusNotFound, dto.RouteError{Error: unknownRouteMsg})
}

func (h *ChatSocketHandler) chat(ctx context.Context, cc internalWS.ConnectionContext, body []byte) internalWS.Response {
	var frame dto.ChatFrame
	if err := json.Unmarshal(body, &frame); err != nil {
		return jsonResponse(http.StatusBadRequest, dto.RouteError{Error: "Invalid request body"})
	}
	if err := serverutils.ValidateRequest(frame.Data); err != nil {
		return jsonResponse(http.StatusBadRequest, dto.RouteError{Error: err.Error()})
	}
	if !cc.IsAdmin && cc.UserID != "" && cc.UserID != frame.Data.UserID {
		h.logger.Warn("ChatSocketHandler", "user_id does not match token", map[string]interface{}{
			"connection_id": cc.ConnectionID,
			"session_id":    frame.Data.SessionID,
		})
		return jsonResponse(http.StatusForbidden, dto.RouteError{Error: "Forbidden"})
	}

	if err := h.chatbot.HandleChat(ctx, cc, frame.Data); err != nil {
		h.logger.Error("ChatSocketHandler", "Chat pipeline aborted", map[string]interface{}{
			"connection_id": cc.ConnectionID,
			"session_id":    frame.Data.SessionID,
			"error":         err,
		})
	}
	return internalWS.Response{StatusCode: http.StatusOK}
}

func jsonResponse(status int, v interface{}) internalWS.Response {
	body, _ := json.Marshal(v)
	return internalWS.Response{StatusCode: status, Body: body}
}
