package github

import (
	"fmt"
	"net/http"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// APIError represents a GitHub API error response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Is maps HTTP statuses onto domain sentinels so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case domain.ErrGitHubUnavailable:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}
