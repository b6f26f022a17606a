package llm

import (
	"context"
)

// Completion is a single model response plus the usage needed for cost
// accounting. Token counts are zero when the provider does not report them.
type Completion struct {
	Text           string
	Model          string
	PromptTokens   int
	ResponseTokens int
}

// Provider is the interface for all LLM completion backends.
// Options keys understood by all providers:
//   - "model": string override of the default model
//   - "json": bool, request a JSON-constrained response where supported
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (*Completion, error)
}

func optString(options map[string]interface{}, key string) string {
	if val, ok := options[key].(string); ok {
		return val
	}
	return ""
}

func optBool(options map[string]interface{}, key string) bool {
	val, ok := options[key].(bool)
	return ok && val
}
