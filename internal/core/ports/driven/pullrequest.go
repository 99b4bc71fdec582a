package driven

import (
	"context"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// PullRequestSource fetches pull requests for review.
// Implementations: GitHub REST (go-github) and a GitHub MCP server.
type PullRequestSource interface {
	// GetPullRequest returns metadata, changed files and the unified diff.
	GetPullRequest(ctx context.Context, ref domain.PullRequestRef) (*domain.PullRequest, error)

	// Close releases resources.
	Close() error
}
