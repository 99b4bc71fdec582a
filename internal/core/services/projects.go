package services

import (
	"context"
	"strings"

	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// ProjectResolver maps project names to external project IDs, creating
// projects on demand. The remote project list is the source of truth; the
// local mapping only avoids creating duplicates.
type ProjectResolver struct {
	tasks    driven.TaskManager
	mappings driven.ProjectMappingStore
}

// NewProjectResolver creates a resolver.
func NewProjectResolver(tasks driven.TaskManager, mappings driven.ProjectMappingStore) *ProjectResolver {
	return &ProjectResolver{tasks: tasks, mappings: mappings}
}

// GetOrCreateProjectID returns the external ID for name:
//
//  1. read the cached mapping
//  2. list remote projects
//  3. a remote project with the same name wins and refreshes the mapping
//  4. otherwise a cached ID that still exists remotely is reused
//  5. otherwise a new project is created and mapped
//
// Stale mappings are removed. Returns "" only when creation fails; callers
// then leave tasks unscoped.
func (r *ProjectResolver) GetOrCreateProjectID(ctx context.Context, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || r.tasks == nil {
		return ""
	}

	cachedID, cached := r.cached(ctx, name)

	projects, err := r.tasks.ListProjects(ctx)
	if err != nil {
		logger.Warn("List projects failed: %v", err)
		if cached {
			// Remote is unreachable; the cached ID is the best guess.
			return cachedID
		}
		return r.create(ctx, name)
	}

	for _, p := range projects {
		if strings.EqualFold(p.Name, name) {
			if !cached || cachedID != p.ID {
				logger.Debug("Project %q resolved remotely to %s", name, p.ID)
				r.store(ctx, name, p.ID)
			}
			return p.ID
		}
	}

	if cached {
		for _, p := range projects {
			if p.ID == cachedID {
				logger.Debug("Project %q reuses cached ID %s (renamed remotely to %q)", name, cachedID, p.Name)
				return cachedID
			}
		}
		logger.Info("Cached project %s for %q no longer exists", cachedID, name)
		if err := r.mappings.Delete(ctx, name); err != nil {
			logger.Warn("Remove stale mapping for %q: %v", name, err)
		}
	}

	return r.create(ctx, name)
}

func (r *ProjectResolver) cached(ctx context.Context, name string) (string, bool) {
	if r.mappings == nil {
		return "", false
	}
	id, ok, err := r.mappings.Get(ctx, name)
	if err != nil {
		logger.Warn("Read project mapping for %q: %v", name, err)
		return "", false
	}
	return id, ok && id != ""
}

func (r *ProjectResolver) create(ctx context.Context, name string) string {
	project, err := r.tasks.CreateProject(ctx, name)
	if err != nil || project == nil || project.ID == "" {
		logger.Warn("Create project %q failed: %v", name, err)
		return ""
	}
	logger.Info("Created project %q (%s)", name, project.ID)
	r.store(ctx, name, project.ID)
	return project.ID
}

func (r *ProjectResolver) store(ctx context.Context, name, id string) {
	if r.mappings == nil {
		return
	}
	if err := r.mappings.Put(ctx, name, id); err != nil {
		logger.Warn("Persist project mapping %q -> %s: %v", name, id, err)
	}
}
