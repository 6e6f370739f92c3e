package domain

import "context"

// EmbeddingResult is the outcome of vectorizing a text.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is implemented by providers that can verify their own availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
