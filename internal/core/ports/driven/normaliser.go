package driven

import (
	"context"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// Normaliser transforms knowledge-base files into plain-text documents.
// Each normaliser handles specific MIME types (e.g., Markdown, HTML).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise transforms a raw file into a document.
	// Chunking is handled by the ingestion pipeline.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)
}
