package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown provider or file type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the chat provider is not configured.
	// Answering, task breakdown and the execution loop are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Ingestion and retrieval are disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrTaskManagerUnavailable indicates the external task manager is not configured.
	ErrTaskManagerUnavailable = errors.New("task manager unavailable")

	// ErrGitHubUnavailable indicates no pull-request source is configured.
	ErrGitHubUnavailable = errors.New("GitHub access unavailable")

	// ErrInvalidRerankWeights indicates embedding and lexical weights do not sum to 1.
	ErrInvalidRerankWeights = errors.New("rerank weights must sum to 1.0")

	// ErrCapacityExceeded indicates a resource cap was hit (chunk iterations,
	// task iterations, tool rounds). Always surfaced to the user.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrSandboxViolation indicates a path escapes the project root.
	ErrSandboxViolation = errors.New("path escapes project root")

	// ErrToolsUnsupported indicates the chat provider cannot execute tool calls.
	ErrToolsUnsupported = errors.New("provider does not support tool calling")

	// ErrDuplicateChunk indicates a chunk ID is already present in the index.
	ErrDuplicateChunk = errors.New("duplicate chunk id")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmptyResponse indicates a provider returned no usable content.
	ErrEmptyResponse = errors.New("empty response")
)

// EmbeddingError reports a failed embedding request during ingestion or query.
// Ingestion that hits an EmbeddingError persists nothing.
type EmbeddingError struct {
	// Index is the position of the failing text in the batch, or -1 for a query.
	Index int

	// Err is the underlying provider error.
	Err error
}

func (e *EmbeddingError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("embedding failed: %v", e.Err)
	}
	return fmt.Sprintf("embedding failed for chunk %d: %v", e.Index, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrEmbeddingUnavailable) match any embedding failure.
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbeddingUnavailable
}

// BreakdownParseError is returned when the model's breakdown is not valid JSON.
// Raw holds the text exactly as the model produced it.
type BreakdownParseError struct {
	Raw string
	Err error
}

func (e *BreakdownParseError) Error() string {
	return fmt.Sprintf("parse task breakdown: %v (raw response: %q)", e.Err, truncate(e.Raw, 200))
}

func (e *BreakdownParseError) Unwrap() error { return e.Err }

// CapacityError reports which cap was hit and at what limit.
type CapacityError struct {
	// Resource names the capped resource, e.g. "chunk iterations".
	Resource string

	// Limit is the configured cap.
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %s limit of %d reached", ErrCapacityExceeded, e.Resource, e.Limit)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// ToolError is a failure inside a single tool invocation. It is rendered
// back to the model as {"error": reason} and never aborts a run.
type ToolError struct {
	Tool   string
	Reason string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("tool %s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// RateLimitError reports an exhausted API quota and when it resets.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s until %s", ErrRateLimited, e.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// IsTransient reports whether err is worth retrying later: a rate limit or
// an error that reports itself as temporary.
func IsTransient(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var temp interface{ Temporary() bool }
	return errors.As(err, &temp) && temp.Temporary()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
