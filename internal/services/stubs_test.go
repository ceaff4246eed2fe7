package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/config"
	"github.com/memchat/memchat-backend/internal/llm"
	"github.com/memchat/memchat-backend/internal/models"
	"github.com/memchat/memchat-backend/internal/repository"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestMemoryConfig() config.MemoryConfig {
	return config.MemoryConfig{
		TokenThreshold:      1000,
		RecentMessagesCount: 5,
		TiktokenEncoding:    "o200k_base",
	}
}

// stubClient scripts model responses. Complete returns completeReply or
// completeErr; CompleteJSON consumes jsonReplies in order, decoding each into
// the caller's target. Requests are recorded for prompt assertions.
type stubClient struct {
	mu sync.Mutex

	completeReply string
	completeErr   error
	jsonReplies   []string
	jsonErr       error

	completeCalls []llm.CompletionRequest
	jsonCalls     []llm.CompletionRequest
}

func (c *stubClient) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.completeCalls = append(c.completeCalls, req)
	if c.completeErr != nil {
		return "", c.completeErr
	}
	return c.completeReply, nil
}

func (c *stubClient) CompleteJSON(ctx context.Context, req llm.CompletionRequest, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.jsonCalls = append(c.jsonCalls, req)
	if c.jsonErr != nil {
		return c.jsonErr
	}
	if len(c.jsonReplies) == 0 {
		return errors.New("stub: no scripted JSON reply")
	}
	reply := c.jsonReplies[0]
	c.jsonReplies = c.jsonReplies[1:]
	return json.Unmarshal([]byte(reply), out)
}

func (c *stubClient) jsonCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jsonCalls)
}

func (c *stubClient) lastJSONCall() llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jsonCalls[len(c.jsonCalls)-1]
}

// stubRepository keeps session records in a map. Load hands out deep copies
// so mutations only land in the map through Save, matching how the real
// engines behave.
type stubRepository struct {
	mu      sync.Mutex
	records map[string]*models.SessionMemory

	loadErr error
	saveErr error

	saveCount int
}

func newStubRepository() *stubRepository {
	return &stubRepository{records: make(map[string]*models.SessionMemory)}
}

func (r *stubRepository) Load(ctx context.Context, sessionID string) (*models.SessionMemory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loadErr != nil {
		return nil, r.loadErr
	}
	stored, ok := r.records[sessionID]
	if !ok {
		return models.NewSessionMemory(sessionID), nil
	}
	return cloneMemory(stored), nil
}

func (r *stubRepository) Save(ctx context.Context, memory *models.SessionMemory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return r.saveErr
	}
	r.records[memory.SessionID] = cloneMemory(memory)
	r.saveCount++
	return nil
}

func (r *stubRepository) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, sessionID)
	return nil
}

func (r *stubRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.records[sessionID]
	return ok, nil
}

func (r *stubRepository) saveCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveCount
}

func (r *stubRepository) stored(sessionID string) *models.SessionMemory {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[sessionID]
	if !ok {
		return nil
	}
	return cloneMemory(stored)
}

func cloneMemory(memory *models.SessionMemory) *models.SessionMemory {
	data, err := json.Marshal(memory)
	if err != nil {
		panic(err)
	}
	var clone models.SessionMemory
	if err := json.Unmarshal(data, &clone); err != nil {
		panic(err)
	}
	return &clone
}

var (
	_ llm.Client                         = (*stubClient)(nil)
	_ repository.SessionMemoryRepository = (*stubRepository)(nil)
)
