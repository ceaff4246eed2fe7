// Command replay feeds the user turns of a recorded conversation through
// the full chat pipeline against a fresh session, which exercises memory
// accumulation, summarization, and persistence end to end. It talks to the
// real model, so OPENAI_API_KEY must be set.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/config"
	"github.com/memchat/memchat-backend/internal/llm"
	"github.com/memchat/memchat-backend/internal/models"
	filerepo "github.com/memchat/memchat-backend/internal/repository/file"
	"github.com/memchat/memchat-backend/internal/services"
	"github.com/memchat/memchat-backend/internal/tokenizer"
)

func main() {
	conversationPath := flag.String("conversation", "data/test_conversations/trip_planning.json",
		"conversation JSON file to replay")
	showAnswers := flag.Bool("answers", false, "print assistant answers as they stream")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	repo, err := filerepo.NewRepository(cfg.Store.Dir, logger)
	if err != nil {
		log.Fatal("Failed to initialize session store:", err)
	}

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
	svc := services.NewServices(cfg, repo, client, counter, logger)

	messages, err := loadConversation(*conversationPath)
	if err != nil {
		log.Fatal("Failed to load conversation:", err)
	}

	// Each run gets its own session so replays never contaminate each other.
	sessionID := fmt.Sprintf("replay-%s", uuid.New().String()[:8])
	fmt.Printf("Replaying conversation from: %s\n", *conversationPath)
	fmt.Printf("Session ID: %s\n", sessionID)
	fmt.Println(strings.Repeat("-", 50))

	ctx := context.Background()
	processed := 0

	for i, msg := range messages {
		// Only user turns are replayed. The pipeline generates its own
		// assistant replies, so recorded ones would double up.
		if msg.Role != models.RoleUser {
			continue
		}

		fmt.Printf("\nProcessing user message [%d]: %s\n", i+1, msg.Content)

		for event := range svc.Agent.ProcessQuery(ctx, msg.Content, sessionID, nil) {
			if *showAnswers && event.Type == models.EventAnswer {
				fmt.Printf("Assistant: %s\n", event.Content)
			}
		}

		fmt.Println("-> processed successfully.")
		processed++
	}

	fmt.Println(strings.Repeat("-", 50))
	fmt.Println("Replay complete.")
	fmt.Printf("Processed %d user messages.\n", processed)
	fmt.Printf("Memory file should be available at: %s\n",
		filepath.Join(cfg.Store.Dir, sessionID+".json"))
}

func loadConversation(path string) ([]models.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if len(payload.Messages) == 0 {
		return nil, fmt.Errorf("no messages found in %s", path)
	}
	return payload.Messages, nil
}
