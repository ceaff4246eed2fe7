package services

import (
	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/config"
	"github.com/memchat/memchat-backend/internal/llm"
	"github.com/memchat/memchat-backend/internal/repository"
	"github.com/memchat/memchat-backend/internal/tokenizer"
)

// Services holds all service instances
type Services struct {
	Memory     *MemoryService
	Summarizer *SummarizerService
	Query      *QueryService
	Agent      *AgentService
}

// NewServices wires the chat pipeline together. Handlers talk to Agent for
// chat and to Memory for session inspection and deletion.
func NewServices(
	cfg *config.Config,
	repo repository.SessionMemoryRepository,
	client llm.Client,
	counter tokenizer.Counter,
	logger *logrus.Logger,
) *Services {
	memory := NewMemoryService(repo, counter, cfg.Memory, logger)
	summarizer := NewSummarizerService(client, counter, cfg.Memory.RecentMessagesCount, logger)
	query := NewQueryService(client, memory, logger)
	agent := NewAgentService(memory, summarizer, query, client, logger)

	return &Services{
		Memory:     memory,
		Summarizer: summarizer,
		Query:      query,
		Agent:      agent,
	}
}
