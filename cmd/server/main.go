package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/api"
	"github.com/memchat/memchat-backend/internal/config"
	"github.com/memchat/memchat-backend/internal/database"
	"github.com/memchat/memchat-backend/internal/llm"
	"github.com/memchat/memchat-backend/internal/repository"
	filerepo "github.com/memchat/memchat-backend/internal/repository/file"
	pgrepo "github.com/memchat/memchat-backend/internal/repository/postgres"
	"github.com/memchat/memchat-backend/internal/services"
	"github.com/memchat/memchat-backend/internal/tokenizer"
)

func main() {
	// Load .env if present; real environment wins over file values
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := newLogger(cfg.Log.Level)

	// Session memory store
	repo, cleanup, err := newRepository(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize session store")
	}
	defer cleanup()

	// Token counter and model client
	counter := tokenizer.NewCounter(cfg.Memory.TiktokenEncoding, logger)
	client := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:             cfg.OpenAI.APIKey,
		Model:              cfg.OpenAI.Model,
		BaseURL:            cfg.OpenAI.BaseURL,
		RequestsPerSecond:  cfg.LLM.RequestsPerSecond,
		Burst:              cfg.LLM.Burst,
		BreakerMaxFailures: cfg.LLM.BreakerMaxFailures,
		BreakerTimeout:     cfg.LLM.BreakerTimeout,
		RequestTimeout:     cfg.LLM.RequestTimeout,
	}, logger)

	// Initialize services
	svc := services.NewServices(cfg, repo, client, counter, logger)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "MemChat Backend",
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	// Setup routes
	api.SetupRoutes(app, svc, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.WithFields(logrus.Fields{
		"port":  cfg.Server.Port,
		"store": cfg.Store.Driver,
		"model": cfg.OpenAI.Model,
	}).Info("MemChat backend starting")

	if err := app.Listen(addr); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

// newRepository builds the configured session store: "file" keeps one JSON
// document per session on disk, "postgres" keeps them in a JSONB table with
// migrations applied at startup.
func newRepository(cfg *config.Config, logger *logrus.Logger) (repository.SessionMemoryRepository, func(), error) {
	switch cfg.Store.Driver {
	case "", "file":
		repo, err := filerepo.NewRepository(cfg.Store.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil

	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("store.database_url is required for the postgres driver")
		}
		db, err := database.NewConnection(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(cfg.Store.DatabaseURL); err != nil {
			db.Close()
			return nil, nil, err
		}
		return pgrepo.NewRepository(db.DB, logger), func() { db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
