package services

import (
	"context"
	"unicode/utf8"
)

const (
	// MaxEmbeddingChars is the head of a document that is embedded.
	MaxEmbeddingChars = 8000

	// MaxResumePromptChars is the head of a resume placed in the scoring prompt.
	MaxResumePromptChars = 4000
)

// CompletionRequest is a single chat completion constrained to a JSON object reply.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// LLMProvider generates structured output for the scorer and the agent.
type LLMProvider interface {
	GenerateJSON(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}

// EmbeddingProvider turns text into a fixed-dimension vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// TruncateHead keeps the first limit characters of text.
func TruncateHead(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}

	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

// TruncateForLog shortens long payloads (prompts, model replies) before logging.
func TruncateForLog(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return TruncateHead(text, limit) + "…"
}
