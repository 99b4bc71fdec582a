package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// DefaultIndexFile is the index file name inside the data directory.
const DefaultIndexFile = "embeddings_index.json"

// IndexStore persists the embedding index as one JSON document.
type IndexStore struct {
	mu   sync.Mutex
	path string
}

// NewIndexStore creates an index store backed by path.
// The file is created on first Save.
func NewIndexStore(path string) *IndexStore {
	return &IndexStore{path: path}
}

// Path returns the index file path.
func (s *IndexStore) Path() string {
	return s.path
}

// Load reads the whole index. Returns domain.ErrNotFound when the file
// does not exist.
func (s *IndexStore) Load(_ context.Context) (*domain.EmbeddingIndexData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data domain.EmbeddingIndexData
	if err := readJSON(s.path, &data); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load index: %w", err)
	}
	if data.Chunks == nil {
		data.Chunks = []domain.EmbeddingChunk{}
	}
	return &data, nil
}

// Save atomically replaces the index file.
func (s *IndexStore) Save(_ context.Context, data *domain.EmbeddingIndexData) error {
	if data == nil {
		return fmt.Errorf("%w: nil index", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeJSON(s.path, data); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Clear deletes the index file. A missing file is not an error.
func (s *IndexStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear index: %w", err)
	}
	return nil
}
