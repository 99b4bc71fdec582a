package driven

import (
	"context"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// Connector reads knowledge-base files for ingestion.
type Connector interface {
	// Type returns the connector type identifier.
	Type() string

	// Validate checks the connector is ready, e.g. the root path exists.
	Validate(ctx context.Context) error

	// FullSync streams every file. Both channels are closed when done.
	FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Watch streams file changes until ctx is cancelled.
	Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error)

	// Close releases resources.
	Close() error
}
