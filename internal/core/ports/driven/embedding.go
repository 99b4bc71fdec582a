package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is an optional service - when nil, ingestion and retrieval are disabled
// and RAG degrades to "no context".
//
// Implementations may include:
//   - Ollama (nomic-embed-text, mxbai-embed-large)
//   - OpenAI (text-embedding-3-small)
//   - LM Studio via its OpenAI-compatible endpoint
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	// An empty model selects the configured default.
	Embed(ctx context.Context, text, model string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// The result is one-to-one and in the same order as texts.
	EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error)

	// ListModels returns the embedding models the provider offers.
	ListModels(ctx context.Context) ([]string, error)

	// ModelName returns the default embedding model.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
