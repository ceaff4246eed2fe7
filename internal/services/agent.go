package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/config"
	"github.com/memchat/memchat-backend/internal/llm"
	"github.com/memchat/memchat-backend/internal/models"
)

// AgentService orchestrates the chat pipeline: load memory, absorb the new
// user message, summarize past the token threshold, understand the query,
// generate the answer, persist, and stream progress events throughout.
type AgentService struct {
	memory     *MemoryService
	summarizer *SummarizerService
	query      *QueryService
	client     llm.Client
	locks      *sessionLocks
	logger     *logrus.Logger
}

func NewAgentService(memory *MemoryService, summarizer *SummarizerService, query *QueryService, client llm.Client, logger *logrus.Logger) *AgentService {
	return &AgentService{
		memory:     memory,
		summarizer: summarizer,
		query:      query,
		client:     client,
		locks:      newSessionLocks(),
		logger:     logger,
	}
}

// ProcessQuery runs the pipeline and returns a channel of progress events
// ending with a single answer event. The channel is closed when the pipeline
// finishes or ctx is canceled. A pipeline panic surfaces to the client as an
// answer event rather than killing the stream silently.
func (s *AgentService) ProcessQuery(ctx context.Context, query, sessionID string, messages []models.Message) <-chan models.StreamEvent {
	events := make(chan models.StreamEvent)

	go func() {
		defer close(events)

		emit := func(event models.StreamEvent) bool {
			select {
			case events <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		defer func() {
			if r := recover(); r != nil {
				s.logger.WithFields(logrus.Fields{
					"session_id": sessionID,
					"panic":      r,
				}).Error("Chat pipeline panicked")
				emit(models.AnswerEvent(fmt.Sprintf("Sorry, an error occurred: %v", r)))
			}
		}()

		s.run(ctx, query, sessionID, messages, emit)
	}()

	return events
}

func (s *AgentService) run(ctx context.Context, query, sessionID string, messages []models.Message, emit func(models.StreamEvent) bool) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	if !emit(models.StepEvent("Loading session memory...")) {
		return
	}
	memory := s.memory.Load(ctx, sessionID)

	// Client-supplied history is merged in, skipping messages the session
	// already holds so resent transcripts do not double-count tokens.
	for _, msg := range messages {
		if !memory.ContainsMessage(msg) {
			s.memory.AddMessage(memory, msg)
		}
	}

	now := time.Now()
	s.memory.AddMessage(memory, models.Message{
		Role:      models.RoleUser,
		Content:   query,
		Timestamp: &now,
	})

	if !emit(models.StepEvent(fmt.Sprintf("Token count: %d/%d", memory.TotalTokens, s.memory.TokenThreshold()))) {
		return
	}

	if s.memory.ShouldSummarize(memory) {
		if !emit(models.StepEvent("Token threshold exceeded, triggering summarization...")) {
			return
		}

		memory, _ = s.summarizer.Summarize(ctx, memory)

		// A stale summary from an earlier run is still worth showing when
		// this round's summarization failed.
		if memory.Summary != nil {
			if !emit(models.SummaryEvent(memory.Summary)) {
				return
			}
		}
	}

	if !emit(models.StepEvent("Analyzing query...")) {
		return
	}

	understanding := s.query.Understand(ctx, query, memory)
	if !emit(models.UnderstandingEvent(understanding)) {
		return
	}

	if len(understanding.ClarifyingQuestions) > 0 {
		if !emit(models.ClarifyingEvent(understanding.ClarifyingQuestions)) {
			return
		}
	}

	if !emit(models.StepEvent("Generating response...")) {
		return
	}

	answer := s.generateAnswer(ctx, understanding)

	answeredAt := time.Now()
	s.memory.AddMessage(memory, models.Message{
		Role:      models.RoleAssistant,
		Content:   answer,
		Timestamp: &answeredAt,
	})

	if err := s.memory.Save(ctx, memory); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).
			Error("Failed to persist session memory")
	}

	emit(models.AnswerEvent(answer))
}

// generateAnswer produces the final response from the augmented context. A
// model failure turns into the canned error message; the exchange is still
// recorded and the pipeline finishes normally.
func (s *AgentService) generateAnswer(ctx context.Context, understanding *models.QueryUnderstanding) string {
	answer, err := s.client.Complete(ctx, llm.CompletionRequest{
		System:      answerSystemPrompt,
		User:        understanding.FinalAugmentedContext,
		Temperature: 0.7,
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to generate response")
		return config.ErrorMessage
	}
	return answer
}
