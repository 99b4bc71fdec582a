package driven

import (
	"context"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// RunStore records execution-loop runs and their progress events.
// This is an optional store - when nil, runs are not recorded.
type RunStore interface {
	// SaveRun creates or updates a run.
	SaveRun(ctx context.Context, report *domain.ExecutionReport) error

	// AppendEvent records a progress event for a run.
	AppendEvent(ctx context.Context, runID string, event domain.ProgressEvent) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*domain.ExecutionReport, error)

	// GetEvents returns the events of a run in the order they were recorded.
	GetEvents(ctx context.Context, runID string) ([]domain.ProgressEvent, error)

	// Close releases resources.
	Close() error
}
