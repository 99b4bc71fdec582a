package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Ensure ProjectMappingStore implements the interface.
var _ driven.ProjectMappingStore = (*ProjectMappingStore)(nil)

// ProjectMappingStore is an in-memory implementation of driven.ProjectMappingStore.
type ProjectMappingStore struct {
	mu       sync.RWMutex
	mappings map[string]string
}

// NewProjectMappingStore creates a new in-memory mapping store.
func NewProjectMappingStore() *ProjectMappingStore {
	return &ProjectMappingStore{
		mappings: make(map[string]string),
	}
}

// Get returns the mapped ID for name.
func (s *ProjectMappingStore) Get(_ context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.mappings[name]
	return id, ok, nil
}

// Put creates or replaces the mapping for name.
func (s *ProjectMappingStore) Put(_ context.Context, name, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[name] = externalID
	return nil
}

// Delete removes the mapping for name.
func (s *ProjectMappingStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mappings, name)
	return nil
}

// List returns a copy of every mapping.
func (s *ProjectMappingStore) List(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.mappings))
	for k, v := range s.mappings {
		out[k] = v
	}
	return out, nil
}
