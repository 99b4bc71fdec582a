// Package mcp provides an MCP (Model Context Protocol) server adapter for
// taskrag. It lets assistants search the knowledge base, compare retrieval
// variants and break feature requests into tasks.
package mcp

import "errors"

// ErrMissingRAGService is returned when the RAG service is not provided.
var ErrMissingRAGService = errors.New("mcp: rag service is required")

// ErrBreakdownUnavailable is returned by breakdown_task when no breakdown
// service was configured.
var ErrBreakdownUnavailable = errors.New("mcp: task breakdown is not configured")
