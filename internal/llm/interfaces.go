// Package llm wraps the language-model and embedding backends the curation
// gate consumes. Provider clients are thin HTTP or SDK adapters; resilience
// (timeouts, rate limiting, circuit breaking) lives in Gateway and Guarded.
package llm

import "context"

// CompletionRequest is a single system+user prompt exchange.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int     // 0 lets the provider pick
	Temperature  float64 // 0 is deterministic
}

// TextGenerator is the interface for LLM text completion.
// Used both for curator analysis and for duplicate adjudication.
type TextGenerator interface {
	GenerateCompletion(ctx context.Context, req CompletionRequest) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface provider clients implement for embeddings.
// Returns float32 slice; Gateway converts to float64 for storage.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}

// Embedder turns text into a storage-ready vector. Gateway implements it.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
}
