// Package tokenizer counts tokens the way the completion model will see
// them. Counts drive the summarization threshold, so both implementations
// are deterministic for a given input.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/models"
)

// Counter maps text to a token count. CountMessages counts each message as
// "<role>: <content>" and sums, matching the transcript rendering used for
// summarization prompts.
type Counter interface {
	CountText(text string) int
	CountMessages(messages []models.Message) int
}

// TiktokenCounter counts with a real BPE encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding (e.g. "o200k_base").
func NewTiktokenCounter(encodingName string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TiktokenCounter{encoding: enc}, nil
}

func (c *TiktokenCounter) CountText(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

func (c *TiktokenCounter) CountMessages(messages []models.Message) int {
	return countMessages(c, messages)
}

// EstimateCounter approximates roughly four characters per token. It backs
// the pipeline when the BPE tables are unavailable (offline startup) and
// gives tests stable counts.
type EstimateCounter struct{}

func NewEstimateCounter() *EstimateCounter {
	return &EstimateCounter{}
}

func (c *EstimateCounter) CountText(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

func (c *EstimateCounter) CountMessages(messages []models.Message) int {
	return countMessages(c, messages)
}

// NewCounter returns a BPE-backed counter for the named encoding, degrading
// to the estimator when the encoding cannot be loaded.
func NewCounter(encodingName string, logger *logrus.Logger) Counter {
	counter, err := NewTiktokenCounter(encodingName)
	if err != nil {
		logger.WithError(err).WithField("encoding", encodingName).
			Warn("Falling back to heuristic token estimation")
		return NewEstimateCounter()
	}
	return counter
}

func countMessages(c Counter, messages []models.Message) int {
	total := 0
	for _, msg := range messages {
		total += c.CountText(msg.Role + ": " + msg.Content)
	}
	return total
}

var (
	_ Counter = (*TiktokenCounter)(nil)
	_ Counter = (*EstimateCounter)(nil)
)
