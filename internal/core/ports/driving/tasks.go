package driving

import (
	"context"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// BreakdownService decomposes feature requests into subtasks.
type BreakdownService interface {
	// BreakdownTask asks the model for an ordered subtask list.
	// ragContext may be empty.
	BreakdownTask(ctx context.Context, userMessage, ragContext string) (*domain.TaskBreakdown, error)

	// PublishBreakdown creates one task per subtask in the named project.
	PublishBreakdown(ctx context.Context, breakdown *domain.TaskBreakdown, projectName string) (*domain.PublishResult, error)
}

// ExecutorService drives the tool-calling execution loop over a project.
type ExecutorService interface {
	// Run processes incomplete tasks of projectID until none remain or a cap is hit.
	Run(ctx context.Context, projectID string, onProgress domain.ProgressFunc) (*domain.ExecutionReport, error)

	// History returns recent runs, newest first. Empty when runs are not recorded.
	History(ctx context.Context, limit int) ([]*domain.ExecutionReport, error)
}

// ReviewService reviews pull requests.
type ReviewService interface {
	// Review fetches the pull request and asks the model for a review.
	Review(ctx context.Context, ref domain.PullRequestRef) (*domain.Review, error)
}
