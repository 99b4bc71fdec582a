package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
type RunStore struct {
	mu     sync.RWMutex
	order  []string
	runs   map[string]domain.ExecutionReport
	events map[string][]domain.ProgressEvent
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:   make(map[string]domain.ExecutionReport),
		events: make(map[string][]domain.ProgressEvent),
	}
}

// SaveRun creates or updates a run.
func (s *RunStore) SaveRun(_ context.Context, report *domain.ExecutionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[report.RunID]; !ok {
		s.order = append(s.order, report.RunID)
	}
	cp := *report
	cp.Outcomes = append([]domain.TaskOutcome(nil), report.Outcomes...)
	cp.Notices = append([]string(nil), report.Notices...)
	s.runs[report.RunID] = cp
	return nil
}

// AppendEvent records a progress event for a run.
func (s *RunStore) AppendEvent(_ context.Context, runID string, event domain.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[runID] = append(s.events[runID], event)
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunStore) ListRuns(_ context.Context, limit int) ([]*domain.ExecutionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.ExecutionReport
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		r := s.runs[s.order[i]]
		out = append(out, &r)
	}
	return out, nil
}

// GetEvents returns the events of a run in insertion order.
func (s *RunStore) GetEvents(_ context.Context, runID string) ([]domain.ProgressEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ProgressEvent(nil), s.events[runID]...), nil
}

// Close is a no-op.
func (s *RunStore) Close() error {
	return nil
}
