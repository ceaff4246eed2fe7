// Package llm is the client for the hosted language model. It exposes two
// call shapes: free-text completion and structured (JSON) completion that
// either decodes into the target type or fails explicitly. Calls are remote,
// fallible and latency-bearing; callers own the degradation policy.
package llm

import "context"

// CompletionRequest is a single system+user prompt pair. A zero Temperature
// leaves the model default in place.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float32
}

// Client is the language-model collaborator consumed by the pipeline.
type Client interface {
	// Complete returns the model's free-text response.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// CompleteJSON asks for a JSON response and decodes it into out.
	// Malformed or non-JSON output is an error; partial output is never
	// silently used.
	CompleteJSON(ctx context.Context, req CompletionRequest, out any) error
}
