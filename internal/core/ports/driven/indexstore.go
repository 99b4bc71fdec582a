package driven

import (
	"context"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// IndexStore persists the embedding index as a single document.
type IndexStore interface {
	// Load reads the whole index. Returns domain.ErrNotFound when nothing
	// has been stored yet.
	Load(ctx context.Context) (*domain.EmbeddingIndexData, error)

	// Save replaces the stored index atomically: readers observe either
	// the previous or the new document, never a partial write.
	Save(ctx context.Context, data *domain.EmbeddingIndexData) error

	// Clear removes the stored index.
	Clear(ctx context.Context) error
}

// ProjectMappingStore persists project name -> external project ID.
// At most one mapping exists per name.
type ProjectMappingStore interface {
	// Get returns the mapped ID and whether a mapping exists.
	Get(ctx context.Context, name string) (string, bool, error)

	// Put creates or replaces the mapping for name.
	Put(ctx context.Context, name, externalID string) error

	// Delete removes the mapping for name. Missing names are not an error.
	Delete(ctx context.Context, name string) error

	// List returns every mapping.
	List(ctx context.Context) (map[string]string, error)
}
