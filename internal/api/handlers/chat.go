package handlers

import (
	"bufio"
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/models"
	"github.com/memchat/memchat-backend/internal/services"
)

// ChatHandler serves the chat pipeline over a streaming HTTP response and
// over WebSocket.
type ChatHandler struct {
	agent  *services.AgentService
	logger *logrus.Logger
}

func NewChatHandler(agent *services.AgentService, logger *logrus.Logger) *ChatHandler {
	return &ChatHandler{
		agent:  agent,
		logger: logger,
	}
}

// Chat handles POST /api/v0/chat/. The body is a stream of newline-delimited
// JSON events; the final event carries the answer. A blank session_id gets a
// fresh UUID so the client can keep the session going.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req models.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query is required",
		})
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	h.logger.WithFields(logrus.Fields{
		"session_id": req.SessionID,
		"messages":   len(req.Messages),
	}).Info("Chat request")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	stream := h.agent.ProcessQuery(c.Context(), req.Query, req.SessionID, req.Messages)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		// Drain on early exit so the pipeline can finish and persist the
		// session even when the client goes away mid-stream.
		defer func() {
			for range stream {
			}
		}()

		for event := range stream {
			if _, err := w.Write(event.Encode()); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})

	return nil
}

// ChatWS handles WebSocket /api/v0/chat/ws. Each inbound frame is a chat
// request; the pipeline's events are written back as JSON frames. The
// connection stays open across requests until the client closes it.
func (h *ChatHandler) ChatWS(conn *websocket.Conn) {
	defer conn.Close()

	for {
		var req models.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			if err := conn.WriteJSON(fiber.Map{"type": "error", "content": "query is required"}); err != nil {
				return
			}
			continue
		}
		if req.SessionID == "" {
			req.SessionID = uuid.New().String()
		}

		h.logger.WithFields(logrus.Fields{
			"session_id": req.SessionID,
			"messages":   len(req.Messages),
		}).Info("Chat request over websocket")

		ctx, cancel := context.WithCancel(context.Background())
		stream := h.agent.ProcessQuery(ctx, req.Query, req.SessionID, req.Messages)

		for event := range stream {
			if err := conn.WriteJSON(event); err != nil {
				// Client disconnected mid-stream.
				cancel()
				for range stream {
				}
				return
			}
		}
		cancel()
	}
}
