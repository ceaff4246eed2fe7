package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// OpenAIConfig configures the OpenAI-backed client. Zero values fall back
// to the defaults below.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional, for OpenAI-compatible endpoints

	RequestsPerSecond  float64       // client-side rate limit, default 5
	Burst              int           // limiter burst, default 10
	BreakerMaxFailures uint32        // consecutive failures to trip, default 3
	BreakerTimeout     time.Duration // open-state duration, default 30s
	RequestTimeout     time.Duration // per-call deadline, default 60s
}

// OpenAIClient implements Client on the OpenAI chat completions API. Every
// call waits on a client-side rate limiter, runs under a deadline, and goes
// through a circuit breaker. No retries: one failed attempt is final.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	breaker *Breaker
	timeout time.Duration
	logger  *logrus.Logger
}

func NewOpenAIClient(cfg OpenAIConfig, logger *logrus.Logger) *OpenAIClient {
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst == 0 {
		cfg.Burst = 10
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	var client *openai.Client
	if cfg.BaseURL != "" {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		clientCfg.BaseURL = cfg.BaseURL
		client = openai.NewClientWithConfig(clientCfg)
	} else {
		client = openai.NewClient(cfg.APIKey)
	}

	return &OpenAIClient{
		client:  client,
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: NewBreaker(BreakerConfig{
			MaxFailures: cfg.BreakerMaxFailures,
			Timeout:     cfg.BreakerTimeout,
		}),
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}
}

// Complete performs a free-text completion.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return c.createCompletion(ctx, req, nil)
}

// CompleteJSON performs a completion in JSON mode and decodes the response
// into out.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, req CompletionRequest, out any) error {
	raw, err := c.createCompletion(ctx, req, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
	if err != nil {
		return err
	}
	return decodeJSON(raw, out)
}

func (c *OpenAIClient) createCompletion(ctx context.Context, req CompletionRequest, format *openai.ChatCompletionResponseFormat) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err := c.breaker.Execute(ctx, func() (any, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.System},
				{Role: openai.ChatMessageRoleUser, Content: req.User},
			},
			Temperature:    req.Temperature,
			ResponseFormat: format,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("completion returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		c.logger.WithError(err).WithField("model", c.model).Error("Completion failed")
		return "", err
	}

	c.logger.WithFields(logrus.Fields{
		"model":      c.model,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("Completion finished")

	return result.(string), nil
}

var _ Client = (*OpenAIClient)(nil)
