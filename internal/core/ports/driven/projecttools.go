package driven

import (
	"context"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// ProjectTools is the file collaborator of the execution loop.
// All paths are relative to Root; implementations reject any path that
// resolves outside it with domain.ErrSandboxViolation.
type ProjectTools interface {
	// List returns the entries of a directory ("" or "." for the root).
	List(ctx context.Context, path string) ([]domain.FileEntry, error)

	// Read returns the content of a file.
	Read(ctx context.Context, path string) (string, error)

	// Write replaces the content of a file, creating parent directories.
	Write(ctx context.Context, path, content string) error

	// SearchInFiles finds lines containing query in files whose name
	// matches the glob pattern ("" matches all files).
	SearchInFiles(ctx context.Context, query, pattern string) ([]domain.FileMatch, error)

	// GetInfo describes a file or directory.
	GetInfo(ctx context.Context, path string) (*domain.FileInfo, error)

	// Root returns the absolute sandbox root.
	Root() string
}
