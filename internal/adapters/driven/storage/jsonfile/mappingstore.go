package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"
	"sync"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Ensure ProjectMappingStore implements the interface.
var _ driven.ProjectMappingStore = (*ProjectMappingStore)(nil)

// DefaultProjectMapFile is the mapping file name inside the data directory.
const DefaultProjectMapFile = "project_mappings.json"

// ProjectMappingStore persists project name -> task-manager project ID as
// a flat JSON object. The file is re-read on every call so edits made by
// another process are picked up.
type ProjectMappingStore struct {
	mu   sync.Mutex
	path string
}

// NewProjectMappingStore creates a mapping store backed by path.
func NewProjectMappingStore(path string) *ProjectMappingStore {
	return &ProjectMappingStore{path: path}
}

// Get returns the mapped ID and whether a mapping exists.
func (s *ProjectMappingStore) Get(_ context.Context, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read()
	if err != nil {
		return "", false, err
	}
	id, ok := m[name]
	return id, ok, nil
}

// Put creates or replaces the mapping for name.
func (s *ProjectMappingStore) Put(_ context.Context, name, externalID string) error {
	if strings.TrimSpace(name) == "" || externalID == "" {
		return fmt.Errorf("%w: project name and ID are required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read()
	if err != nil {
		return err
	}
	m[name] = externalID
	return s.write(m)
}

// Delete removes the mapping for name. Missing names are not an error.
func (s *ProjectMappingStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := m[name]; !ok {
		return nil
	}
	delete(m, name)
	return s.write(m)
}

// List returns a copy of every mapping.
func (s *ProjectMappingStore) List(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read()
	if err != nil {
		return nil, err
	}
	return maps.Clone(m), nil
}

func (s *ProjectMappingStore) read() (map[string]string, error) {
	m := make(map[string]string)
	if err := readJSON(s.path, &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("load project mappings: %w", err)
	}
	if m == nil {
		m = make(map[string]string)
	}
	return m, nil
}

func (s *ProjectMappingStore) write(m map[string]string) error {
	if err := writeJSON(s.path, m); err != nil {
		return fmt.Errorf("save project mappings: %w", err)
	}
	return nil
}
