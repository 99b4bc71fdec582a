// Package domain defines the core business entities for taskrag.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - EmbeddingChunk / EmbeddingIndexData: the persisted retrieval index
//   - RankedChunk / RAGComparisonResult: transient retrieval results
//   - Subtask / TaskBreakdown / Task / Project: task-manager entities
//   - ExecutionReport / ProgressEvent: the execution loop's observable output
//   - PullRequest / Review: pull-request review entities
//   - AppSettings: user configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
