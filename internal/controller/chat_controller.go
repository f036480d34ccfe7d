package controller

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/session"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
}

// chatMessage is one inbound client frame. An empty session_id starts a new
// conversation; the assigned id is echoed back on every event.
type chatMessage struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatController struct {
	engine *session.Engine
	log    logger.ILogger
}

func NewChatController(engine *session.Engine, log logger.ILogger) IChatController {
	return &chatController{engine: engine, log: log}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat")
	h.Use("/ws", upgradeRequired)
	h.Get("/ws", websocket.New(c.handleSocket))
}

func upgradeRequired(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}

// handleSocket runs the turn loop for one connection. Turns are handled
// sequentially per connection, so event writes never interleave.
func (c *chatController) handleSocket(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg chatMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Message == "" {
			c.writeEvent(conn, "", session.Event{
				Type: session.EventError,
				Data: map[string]interface{}{"message": "expected {\"session_id\": \"...\", \"message\": \"...\"}"},
			})
			continue
		}
		if msg.SessionID == "" {
			msg.SessionID = uuid.NewString()
		}

		c.engine.HandleTurn(context.Background(), msg.SessionID, msg.Message, func(ev session.Event) {
			c.writeEvent(conn, msg.SessionID, ev)
		})
	}
}

func (c *chatController) writeEvent(conn *websocket.Conn, sessionID string, ev session.Event) {
	payload := map[string]interface{}{
		"type": ev.Type,
		"data": ev.Data,
	}
	if sessionID != "" {
		payload["session_id"] = sessionID
	}
	if err := conn.WriteJSON(payload); err != nil {
		c.log.Warn("ChatController", "event write failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}
