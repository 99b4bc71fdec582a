package driving

import (
	"context"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// RAGService answers questions from the embedding index.
type RAGService interface {
	// SearchRelevantChunks retrieves candidates for a query. It never fails:
	// an unreachable embedding backend yields an empty result.
	SearchRelevantChunks(ctx context.Context, query string) []domain.ScoredEmbeddingChunk

	// BuildComparison builds the baseline and reranked variants for a question.
	BuildComparison(ctx context.Context, question string) *domain.RAGComparisonResult

	// Answer completes the RAG prompt of the configured variant with the chat provider.
	Answer(ctx context.Context, question string) (*domain.RAGAnswer, error)

	// ContextFor returns the rendered context of the configured variant,
	// or "" when nothing relevant was found.
	ContextFor(ctx context.Context, query string) string
}

// IngestService populates the embedding index.
type IngestService interface {
	// IngestText chunks, embeds and stores a single text.
	// Returns the number of chunks added.
	IngestText(ctx context.Context, text string, metadata map[string]string) (int, error)

	// IngestSource reads every file of a connector into the index.
	// When rebuild is set the index is cleared first.
	IngestSource(ctx context.Context, rebuild bool) (*domain.IngestStats, error)

	// Watch re-ingests changed files until ctx is cancelled.
	Watch(ctx context.Context, onChange func(domain.RawDocumentChange, error)) error
}
