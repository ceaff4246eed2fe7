package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memchat/memchat-backend/internal/config"
	"github.com/memchat/memchat-backend/internal/llm"
	"github.com/memchat/memchat-backend/internal/models"
	"github.com/memchat/memchat-backend/internal/tokenizer"
)

func newTestAgent(repo *stubRepository, client llm.Client) *AgentService {
	cfg := &config.Config{Memory: newTestMemoryConfig()}
	return NewServices(cfg, repo, client, tokenizer.NewEstimateCounter(), newTestLogger()).Agent
}

func collectEvents(t *testing.T, events <-chan models.StreamEvent) []models.StreamEvent {
	t.Helper()
	var collected []models.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return collected
			}
			collected = append(collected, event)
		case <-timeout:
			t.Fatal("event stream did not close")
		}
	}
}

func stepContents(events []models.StreamEvent) []string {
	var steps []string
	for _, event := range events {
		if event.Type == models.EventPipelineStep {
			steps = append(steps, event.Content.(string))
		}
	}
	return steps
}

func eventTypes(events []models.StreamEvent) []string {
	types := make([]string, len(events))
	for i, event := range events {
		types[i] = event.Type
	}
	return types
}

func TestProcessQueryHappyPath(t *testing.T) {
	repo := newStubRepository()
	client := &stubClient{
		completeReply: "The answer.",
		jsonReplies:   []string{`{"is_ambiguous": false}`},
	}
	agent := newTestAgent(repo, client)

	events := collectEvents(t, agent.ProcessQuery(context.Background(), "hello", "s1", nil))

	require.Equal(t, []string{
		models.EventPipelineStep,
		models.EventPipelineStep,
		models.EventPipelineStep,
		models.EventQueryUnderstanding,
		models.EventPipelineStep,
		models.EventAnswer,
	}, eventTypes(events))

	steps := stepContents(events)
	assert.Equal(t, "Loading session memory...", steps[0])
	assert.True(t, strings.HasPrefix(steps[1], "Token count: "))
	assert.True(t, strings.HasSuffix(steps[1], "/1000"))
	assert.Equal(t, "Analyzing query...", steps[2])
	assert.Equal(t, "Generating response...", steps[3])
	assert.Equal(t, "The answer.", events[len(events)-1].Content)

	stored := repo.stored("s1")
	require.NotNil(t, stored)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, models.RoleUser, stored.Messages[0].Role)
	assert.Equal(t, "hello", stored.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, stored.Messages[1].Role)
	assert.Equal(t, "The answer.", stored.Messages[1].Content)

	counter := tokenizer.NewEstimateCounter()
	assert.Equal(t, counter.CountMessages(stored.Messages), stored.TotalTokens)
	assert.Equal(t, 1, repo.saveCalls())
}

func TestProcessQuerySummarizesPastThreshold(t *testing.T) {
	repo := newStubRepository()
	memSvc := newTestMemoryService(repo)
	seeded := models.NewSessionMemory("s1")
	long := strings.Repeat("tokens and more tokens ", 20)
	for i := 0; i < 12; i++ {
		memSvc.AddMessage(seeded, models.Message{Role: models.RoleUser, Content: long})
	}
	require.Greater(t, seeded.TotalTokens, 1000)
	require.NoError(t, memSvc.Save(context.Background(), seeded))

	client := &stubClient{
		completeReply: "ok",
		jsonReplies:   []string{summaryReply, `{"is_ambiguous": false}`},
	}
	agent := newTestAgent(repo, client)

	events := collectEvents(t, agent.ProcessQuery(context.Background(), "next question", "s1", nil))

	steps := stepContents(events)
	assert.Contains(t, steps, "Token threshold exceeded, triggering summarization...")

	types := eventTypes(events)
	assert.Contains(t, types, models.EventSummary)

	var summary *models.SessionSummary
	for _, event := range events {
		if event.Type == models.EventSummary {
			summary = event.Content.(*models.SessionSummary)
		}
	}
	require.NotNil(t, summary)
	assert.Equal(t, []string{"travels in May"}, summary.KeyFacts)

	stored := repo.stored("s1")
	require.NotNil(t, stored)
	require.NotNil(t, stored.Summary)
	require.NotNil(t, stored.MessageRangeSummarized)
	assert.Equal(t, 0, stored.MessageRangeSummarized.From)
	assert.Equal(t, 12, stored.MessageRangeSummarized.To)
	// Last 5 survive truncation, then the assistant reply lands on top.
	assert.Len(t, stored.Messages, 6)
	assert.Equal(t, models.RoleAssistant, stored.Messages[5].Role)
}

func TestProcessQuerySummarizationFailureKeepsLog(t *testing.T) {
	repo := newStubRepository()
	memSvc := newTestMemoryService(repo)
	seeded := models.NewSessionMemory("s1")
	long := strings.Repeat("tokens and more tokens ", 20)
	for i := 0; i < 12; i++ {
		memSvc.AddMessage(seeded, models.Message{Role: models.RoleUser, Content: long})
	}
	require.NoError(t, memSvc.Save(context.Background(), seeded))

	client := &stubClient{
		completeReply: "ok",
		jsonErr:       errors.New("model unavailable"),
	}
	agent := newTestAgent(repo, client)

	events := collectEvents(t, agent.ProcessQuery(context.Background(), "next question", "s1", nil))

	steps := stepContents(events)
	assert.Contains(t, steps, "Token threshold exceeded, triggering summarization...")
	assert.NotContains(t, eventTypes(events), models.EventSummary)

	// Query understanding also failed, so the fallback context still reaches
	// the answer step and the stream terminates normally.
	assert.Equal(t, "ok", events[len(events)-1].Content)

	stored := repo.stored("s1")
	require.NotNil(t, stored)
	assert.Nil(t, stored.Summary)
	assert.Len(t, stored.Messages, 14)
}

func TestProcessQueryEmitsClarifyingQuestions(t *testing.T) {
	repo := newStubRepository()
	client := &stubClient{
		completeReply: "Here you go.",
		jsonReplies:   []string{`{"is_ambiguous": true, "clarifying_questions": ["Which city?", "What dates?"]}`},
	}
	agent := newTestAgent(repo, client)

	events := collectEvents(t, agent.ProcessQuery(context.Background(), "book it", "s1", nil))

	require.Equal(t, []string{
		models.EventPipelineStep,
		models.EventPipelineStep,
		models.EventPipelineStep,
		models.EventQueryUnderstanding,
		models.EventClarifyingQuestions,
		models.EventPipelineStep,
		models.EventAnswer,
	}, eventTypes(events))

	questions := events[4].Content.([]string)
	assert.Equal(t, []string{"Which city?", "What dates?"}, questions)
}

func TestProcessQueryAnswerFailureUsesCannedMessage(t *testing.T) {
	repo := newStubRepository()
	client := &stubClient{
		completeErr: errors.New("model unavailable"),
		jsonReplies: []string{`{"is_ambiguous": false}`},
	}
	agent := newTestAgent(repo, client)

	events := collectEvents(t, agent.ProcessQuery(context.Background(), "hello", "s1", nil))

	last := events[len(events)-1]
	assert.Equal(t, models.EventAnswer, last.Type)
	assert.Equal(t, config.ErrorMessage, last.Content)

	// The failed exchange is still recorded and persisted.
	stored := repo.stored("s1")
	require.NotNil(t, stored)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, config.ErrorMessage, stored.Messages[1].Content)
}

type panicClient struct {
	stubClient
}

func (c *panicClient) CompleteJSON(ctx context.Context, req llm.CompletionRequest, out any) error {
	panic("model exploded")
}

func TestProcessQueryRecoversFromPanic(t *testing.T) {
	repo := newStubRepository()
	agent := newTestAgent(repo, &panicClient{})

	events := collectEvents(t, agent.ProcessQuery(context.Background(), "hello", "s1", nil))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, models.EventAnswer, last.Type)
	answer := last.Content.(string)
	assert.True(t, strings.HasPrefix(answer, "Sorry, an error occurred: "))
	assert.Contains(t, answer, "model exploded")

	assert.Equal(t, 0, repo.saveCalls())
}

func TestProcessQueryMergesClientHistoryWithoutDuplicates(t *testing.T) {
	repo := newStubRepository()
	memSvc := newTestMemoryService(repo)
	seeded := models.NewSessionMemory("s1")
	memSvc.AddMessage(seeded, models.Message{Role: models.RoleUser, Content: "old question"})
	require.NoError(t, memSvc.Save(context.Background(), seeded))

	client := &stubClient{
		completeReply: "fresh answer",
		jsonReplies:   []string{`{"is_ambiguous": false}`},
	}
	agent := newTestAgent(repo, client)

	history := []models.Message{
		{Role: models.RoleUser, Content: "old question"},
		{Role: models.RoleAssistant, Content: "old answer"},
	}
	collectEvents(t, agent.ProcessQuery(context.Background(), "new question", "s1", history))

	stored := repo.stored("s1")
	require.NotNil(t, stored)
	require.Len(t, stored.Messages, 4)

	var oldQuestionCount int
	for _, msg := range stored.Messages {
		if msg.Content == "old question" {
			oldQuestionCount++
		}
	}
	assert.Equal(t, 1, oldQuestionCount)
	assert.Equal(t, "old answer", stored.Messages[1].Content)
	assert.Equal(t, "new question", stored.Messages[2].Content)
}

func TestProcessQuerySerializesSameSession(t *testing.T) {
	repo := newStubRepository()
	client := &stubClient{
		completeReply: "ok",
		jsonReplies:   []string{`{"is_ambiguous": false}`, `{"is_ambiguous": false}`},
	}
	agent := newTestAgent(repo, client)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			stream := agent.ProcessQuery(context.Background(), fmt.Sprintf("query-%d", n), "shared", nil)
			for range stream {
			}
		}(i)
	}
	wg.Wait()

	// Serialized runs mean the second sees the first's messages: two user
	// turns plus two assistant turns survive, not last-writer-wins.
	stored := repo.stored("shared")
	require.NotNil(t, stored)
	assert.Len(t, stored.Messages, 4)
	assert.Equal(t, 2, repo.saveCalls())
}

type blockingClient struct {
	stubClient
}

func (c *blockingClient) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (c *blockingClient) CompleteJSON(ctx context.Context, req llm.CompletionRequest, out any) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestProcessQueryStreamClosesOnCancel(t *testing.T) {
	repo := newStubRepository()
	agent := newTestAgent(repo, &blockingClient{})

	ctx, cancel := context.WithCancel(context.Background())
	stream := agent.ProcessQuery(ctx, "hello", "s1", nil)

	// First event arrives before the pipeline reaches the blocked model call.
	first, ok := <-stream
	require.True(t, ok)
	assert.Equal(t, models.EventPipelineStep, first.Type)

	cancel()

	done := make(chan struct{})
	go func() {
		for range stream {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancellation")
	}
}
