// Package llm wraps the model providers used by the document analysis
// activity. All extraction runs through a strict-JSON output contract so the
// downstream parser never depends on provider quirks.
package llm

import (
	"context"
	"os"
)

// Provider is the interface all model backends implement.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
}

// FromEnv selects a provider by LLM_PROVIDER, defaulting to Gemini.
func FromEnv() Provider {
	switch os.Getenv("LLM_PROVIDER") {
	case "deepseek":
		return &DeepSeekProvider{}
	default:
		return &GeminiProvider{}
	}
}
