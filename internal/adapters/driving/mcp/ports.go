package mcp

import (
	"github.com/custodia-labs/taskrag/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// RAG provides retrieval over the embedding index.
	RAG driving.RAGService

	// Breakdown decomposes requests into subtasks. Optional.
	Breakdown driving.BreakdownService

	// Executor exposes run history as a resource. Optional.
	Executor driving.ExecutorService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.RAG == nil {
		return ErrMissingRAGService
	}
	return nil
}
