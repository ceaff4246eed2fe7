package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/api/handlers"
	"github.com/memchat/memchat-backend/internal/api/middleware"
	"github.com/memchat/memchat-backend/internal/config"
	"github.com/memchat/memchat-backend/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services, logger *logrus.Logger) {
	api := app.Group("/api")

	// Health check
	api.Get("/health", handlers.Health)

	chatHandler := handlers.NewChatHandler(svc.Agent, logger)
	sessionHandler := handlers.NewSessionHandler(svc.Memory, logger)

	chat := api.Group("/" + config.APIVersion + "/chat")

	// Chat pipeline, streamed as newline-delimited JSON events
	chat.Post("/", middleware.ChatRateLimit(), chatHandler.Chat)

	// Session memory inspection and reset
	chat.Get("/session/:sessionID", sessionHandler.GetSession)
	chat.Delete("/session/:sessionID", sessionHandler.ClearSession)

	// WebSocket variant of the chat stream
	chat.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	chat.Get("/ws", websocket.New(chatHandler.ChatWS))
}
