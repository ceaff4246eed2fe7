package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/llm"
	"github.com/memchat/memchat-backend/internal/models"
	"github.com/memchat/memchat-backend/internal/tokenizer"
)

// SummarizerService condenses a session's full message log into a structured
// summary and truncates the log to its recent tail.
type SummarizerService struct {
	client    llm.Client
	counter   tokenizer.Counter
	keepCount int
	logger    *logrus.Logger
}

func NewSummarizerService(client llm.Client, counter tokenizer.Counter, keepCount int, logger *logrus.Logger) *SummarizerService {
	return &SummarizerService{
		client:    client,
		counter:   counter,
		keepCount: keepCount,
		logger:    logger,
	}
}

// Summarize replaces memory.Summary with a fresh summary of every message
// currently in the log, records the summarized range, keeps only the last
// keepCount messages, and recounts tokens. An empty log is a no-op. On model
// failure the memory is returned unmodified along with the error; callers
// continue the conversation with the full log intact.
func (s *SummarizerService) Summarize(ctx context.Context, memory *models.SessionMemory) (*models.SessionMemory, error) {
	if len(memory.Messages) == 0 {
		return memory, nil
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":   memory.SessionID,
		"total_tokens": memory.TotalTokens,
	}).Info("Summarizing session")

	var summary models.SessionSummary
	err := s.client.CompleteJSON(ctx, llm.CompletionRequest{
		System: summarizerSystemPrompt,
		User:   fmt.Sprintf(summarizeConversationPrompt, transcript(memory.Messages)),
	}, &summary)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", memory.SessionID).
			Error("Summarization failed, keeping full message log")
		return memory, err
	}

	memory.Summary = &summary
	memory.MessageRangeSummarized = &models.MessageRange{
		From: 0,
		To:   len(memory.Messages) - 1,
	}

	if s.keepCount > 0 && len(memory.Messages) > s.keepCount {
		memory.Messages = memory.Messages[len(memory.Messages)-s.keepCount:]
	}
	memory.TotalTokens = s.counter.CountMessages(memory.Messages)

	s.logger.WithFields(logrus.Fields{
		"session_id":   memory.SessionID,
		"total_tokens": memory.TotalTokens,
	}).Info("Summarization complete")

	return memory, nil
}
