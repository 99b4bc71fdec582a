package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore is an in-memory implementation of driven.IndexStore.
// Saved documents are deep-copied so callers cannot mutate stored state.
type IndexStore struct {
	mu    sync.RWMutex
	data  *domain.EmbeddingIndexData
	saves int
}

// NewIndexStore creates a new in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{}
}

// Load returns a copy of the stored index.
func (s *IndexStore) Load(_ context.Context) (*domain.EmbeddingIndexData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, domain.ErrNotFound
	}
	return cloneIndex(s.data), nil
}

// Save replaces the stored index.
func (s *IndexStore) Save(_ context.Context, data *domain.EmbeddingIndexData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = cloneIndex(data)
	s.saves++
	return nil
}

// Clear removes the stored index.
func (s *IndexStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}

// Saves returns how many times Save was called.
func (s *IndexStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func cloneIndex(data *domain.EmbeddingIndexData) *domain.EmbeddingIndexData {
	if data == nil {
		return nil
	}
	out := &domain.EmbeddingIndexData{
		Chunks:    make([]domain.EmbeddingChunk, len(data.Chunks)),
		CreatedAt: data.CreatedAt,
		Model:     data.Model,
	}
	for i, c := range data.Chunks {
		cp := c
		cp.Embedding = append([]float32(nil), c.Embedding...)
		if c.Metadata != nil {
			cp.Metadata = make(map[string]string, len(c.Metadata))
			for k, v := range c.Metadata {
				cp.Metadata[k] = v
			}
		}
		out.Chunks[i] = cp
	}
	return out
}
