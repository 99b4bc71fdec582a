package driven

import (
	"context"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// TaskManager is the external task manager (Todoist-shaped).
// Every call is a live request; callers must not cache results across
// execution-loop iterations.
type TaskManager interface {
	// ListTasks returns active tasks, scoped to projectID when non-empty.
	ListTasks(ctx context.Context, projectID string, filter domain.TaskFilter) ([]domain.Task, error)

	// CreateTask creates a task and returns it with its assigned ID.
	CreateTask(ctx context.Context, task domain.TaskCreate) (*domain.Task, error)

	// UpdateTask applies a partial update.
	UpdateTask(ctx context.Context, id string, update domain.TaskUpdate) (*domain.Task, error)

	// CloseTask marks a task complete.
	CloseTask(ctx context.Context, id string) error

	// DeleteTask removes a task.
	DeleteTask(ctx context.Context, id string) error

	// ListProjects returns all projects.
	ListProjects(ctx context.Context) ([]domain.Project, error)

	// CreateProject creates a project with the given name.
	CreateProject(ctx context.Context, name string) (*domain.Project, error)
}
