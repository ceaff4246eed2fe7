package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/config"
	"github.com/memchat/memchat-backend/internal/models"
	"github.com/memchat/memchat-backend/internal/repository"
	"github.com/memchat/memchat-backend/internal/tokenizer"
)

// MemoryService owns the session-memory lifecycle rules: token accounting,
// the summarization threshold, recent-message selection, and rendering
// summary fields into prompt context. Persistence is delegated to the
// injected repository.
type MemoryService struct {
	repo    repository.SessionMemoryRepository
	counter tokenizer.Counter
	cfg     config.MemoryConfig
	logger  *logrus.Logger
}

func NewMemoryService(repo repository.SessionMemoryRepository, counter tokenizer.Counter, cfg config.MemoryConfig, logger *logrus.Logger) *MemoryService {
	return &MemoryService{
		repo:    repo,
		counter: counter,
		cfg:     cfg,
		logger:  logger,
	}
}

// Load returns the persisted memory for the session, or a fresh empty one.
// Storage failures never stop a pipeline run; they degrade to a new session.
func (s *MemoryService) Load(ctx context.Context, sessionID string) *models.SessionMemory {
	memory, err := s.repo.Load(ctx, sessionID)
	if err != nil || memory == nil {
		if err != nil {
			s.logger.WithError(err).WithField("session_id", sessionID).
				Error("Failed to load session memory, starting fresh")
		}
		return models.NewSessionMemory(sessionID)
	}
	return memory
}

// Save persists the memory. The repository stamps updated_at.
func (s *MemoryService) Save(ctx context.Context, memory *models.SessionMemory) error {
	return s.repo.Save(ctx, memory)
}

// Delete removes the persisted record; deleting an unknown session succeeds.
func (s *MemoryService) Delete(ctx context.Context, sessionID string) error {
	return s.repo.Delete(ctx, sessionID)
}

// AddMessage appends and recomputes total_tokens over the entire current
// message list. It does not persist; callers save explicitly.
func (s *MemoryService) AddMessage(memory *models.SessionMemory, message models.Message) {
	memory.Messages = append(memory.Messages, message)
	memory.TotalTokens = s.counter.CountMessages(memory.Messages)
}

// RecountTokens recomputes total_tokens after any direct mutation of the
// message list.
func (s *MemoryService) RecountTokens(memory *models.SessionMemory) {
	memory.TotalTokens = s.counter.CountMessages(memory.Messages)
}

// ShouldSummarize reports whether the unsummarized tail has grown past the
// threshold. Strictly greater than: a session sitting exactly at the
// threshold does not trigger.
func (s *MemoryService) ShouldSummarize(memory *models.SessionMemory) bool {
	return memory.TotalTokens > s.cfg.TokenThreshold
}

// TokenThreshold exposes the configured threshold for progress reporting.
func (s *MemoryService) TokenThreshold() int {
	return s.cfg.TokenThreshold
}

// RecentMessages returns the last count messages, or all of them if fewer
// exist. A non-positive count means the configured default.
func (s *MemoryService) RecentMessages(memory *models.SessionMemory, count int) []models.Message {
	if count <= 0 {
		count = s.cfg.RecentMessagesCount
	}
	if len(memory.Messages) <= count {
		return memory.Messages
	}
	return memory.Messages[len(memory.Messages)-count:]
}

// RecentMessagesCount exposes the configured retention count.
func (s *MemoryService) RecentMessagesCount() int {
	return s.cfg.RecentMessagesCount
}

// ContextFromSummary renders the named summary fields as prompt context,
// one "path: values" line per resolvable non-empty field. Unknown or empty
// paths are skipped silently. Returns "" when no summary exists.
func (s *MemoryService) ContextFromSummary(memory *models.SessionMemory, fieldPaths []string) string {
	if memory.Summary == nil {
		return ""
	}

	var lines []string
	for _, path := range fieldPaths {
		accessor, ok := summaryFieldAccessors[path]
		if !ok {
			continue
		}
		values := accessor(memory.Summary)
		if len(values) == 0 {
			continue
		}
		lines = append(lines, path+": "+strings.Join(values, ", "))
	}

	return strings.Join(lines, "\n")
}

// summaryFieldAccessors is the fixed table of summary field paths the model
// may name when requesting context. Every field in this schema is
// list-valued; "user_profile" flattens both of its lists.
var summaryFieldAccessors = map[string]func(*models.SessionSummary) []string{
	"user_profile": func(s *models.SessionSummary) []string {
		combined := make([]string, 0, len(s.UserProfile.Preferences)+len(s.UserProfile.Constraints))
		combined = append(combined, s.UserProfile.Preferences...)
		combined = append(combined, s.UserProfile.Constraints...)
		return combined
	},
	"user_profile.preferences": func(s *models.SessionSummary) []string { return s.UserProfile.Preferences },
	"user_profile.constraints": func(s *models.SessionSummary) []string { return s.UserProfile.Constraints },
	"key_facts":                func(s *models.SessionSummary) []string { return s.KeyFacts },
	"decisions":                func(s *models.SessionSummary) []string { return s.Decisions },
	"open_questions":           func(s *models.SessionSummary) []string { return s.OpenQuestions },
	"todos":                    func(s *models.SessionSummary) []string { return s.Todos },
}

// transcript renders messages as "role: content" lines, newline joined.
// This is the exact text token counting and the summarization prompt see.
func transcript(messages []models.Message) string {
	lines := make([]string, len(messages))
	for i, msg := range messages {
		lines[i] = msg.Role + ": " + msg.Content
	}
	return strings.Join(lines, "\n")
}
