package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/llm"
	"github.com/memchat/memchat-backend/internal/models"
)

// QueryService runs the query understanding pipeline: ambiguity detection and
// rewriting, selecting summary fields worth pulling into context, clarifying
// questions, and assembly of the final augmented context the answer model sees.
type QueryService struct {
	client llm.Client
	memory *MemoryService
	logger *logrus.Logger
}

func NewQueryService(client llm.Client, memory *MemoryService, logger *logrus.Logger) *QueryService {
	return &QueryService{
		client: client,
		memory: memory,
		logger: logger,
	}
}

// Understand analyzes the query against recent conversation and the session
// summary. It never fails: when the model call or its output is unusable, the
// result degrades to a not-ambiguous understanding whose context carries only
// the recent conversation and the raw query.
func (s *QueryService) Understand(ctx context.Context, query string, memory *models.SessionMemory) *models.QueryUnderstanding {
	recent := s.memory.RecentMessages(memory, 0)
	recentContext := "No recent messages."
	if len(recent) > 0 {
		recentContext = transcript(recent)
	}

	summaryContext := ""
	if memory.Summary != nil {
		summaryContext = summaryDigest(memory.Summary)
	}

	var result models.QueryUnderstanding
	err := s.client.CompleteJSON(ctx, llm.CompletionRequest{
		System: queryUnderstandingSystemPrompt,
		User:   fmt.Sprintf(queryAnalysisPrompt, query, recentContext, summaryContext),
	}, &result)
	if err != nil {
		s.logger.WithError(err).Error("Query understanding failed, using fallback")
		return &models.QueryUnderstanding{
			OriginalQuery:           query,
			IsAmbiguous:             false,
			NeededContextFromMemory: []string{},
			ClarifyingQuestions:     []string{},
			FinalAugmentedContext:   "Recent conversation:\n" + recentContext + "\n\nUser query: " + query,
		}
	}

	// The model never gets to restate the query it was asked about.
	result.OriginalQuery = query
	if result.NeededContextFromMemory == nil {
		result.NeededContextFromMemory = []string{}
	}
	if result.ClarifyingQuestions == nil {
		result.ClarifyingQuestions = []string{}
	}

	var parts []string
	if len(recent) > 0 {
		parts = append(parts, "Recent conversation:\n"+recentContext)
	}
	if len(result.NeededContextFromMemory) > 0 && memory.Summary != nil {
		if memoryContext := s.memory.ContextFromSummary(memory, result.NeededContextFromMemory); memoryContext != "" {
			parts = append(parts, "From session memory:\n"+memoryContext)
		}
	}
	parts = append(parts, "User query: "+result.EffectiveQuery())
	result.FinalAugmentedContext = strings.Join(parts, "\n\n")

	s.logger.WithField("is_ambiguous", result.IsAmbiguous).Info("Query understanding complete")
	return &result
}

// summaryDigest renders the summary fields the analysis prompt cares about.
// Decisions and todos stay out; they rarely disambiguate a query.
func summaryDigest(summary *models.SessionSummary) string {
	return fmt.Sprintf(`
Session Summary:
- User preferences: %s
- Constraints: %s
- Key facts: %s
- Open questions: %s
`,
		joinOrNone(summary.UserProfile.Preferences),
		joinOrNone(summary.UserProfile.Constraints),
		joinOrNone(summary.KeyFacts),
		joinOrNone(summary.OpenQuestions))
}

func joinOrNone(values []string) string {
	joined := strings.Join(values, ", ")
	if joined == "" {
		return "None"
	}
	return joined
}
