package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/services"
)

// SessionHandler exposes session memory for inspection and reset.
type SessionHandler struct {
	memory *services.MemoryService
	logger *logrus.Logger
}

func NewSessionHandler(memory *services.MemoryService, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{
		memory: memory,
		logger: logger,
	}
}

// GetSession handles GET /api/v0/chat/session/:sessionID. An unknown session
// returns an empty memory rather than 404, the same record a pipeline run
// would start from.
func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	memory := h.memory.Load(c.Context(), c.Params("sessionID"))
	return c.JSON(memory)
}

// ClearSession handles DELETE /api/v0/chat/session/:sessionID. Clearing a
// session that does not exist succeeds.
func (h *SessionHandler) ClearSession(c *fiber.Ctx) error {
	sessionID := c.Params("sessionID")
	if err := h.memory.Delete(c.Context(), sessionID); err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to clear session")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Session %s cleared", sessionID),
	})
}
