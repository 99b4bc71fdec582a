package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/logger"
	"github.com/custodia-labs/taskrag/internal/postprocessors/chunker"
)

// EmbeddingPipeline chunks text, embeds the chunks and stores them in the
// index. It also embeds queries for similarity search.
type EmbeddingPipeline struct {
	embedder driven.EmbeddingService
	index    *EmbeddingIndex
	chunker  *chunker.Processor
	newID    func() string
}

// NewEmbeddingPipeline creates a pipeline. embedder may be nil, in which
// case every operation fails with domain.ErrEmbeddingUnavailable.
func NewEmbeddingPipeline(embedder driven.EmbeddingService, index *EmbeddingIndex, chunks *chunker.Processor) *EmbeddingPipeline {
	if chunks == nil {
		chunks = chunker.New()
	}
	return &EmbeddingPipeline{
		embedder: embedder,
		index:    index,
		chunker:  chunks,
		newID:    func() string { return uuid.New().String() },
	}
}

// Index returns the underlying embedding index.
func (p *EmbeddingPipeline) Index() *EmbeddingIndex {
	return p.index
}

// Available reports whether an embedding provider is configured.
func (p *EmbeddingPipeline) Available() bool {
	return p.embedder != nil
}

// ProcessText chunks, embeds and stores one text. Returns the stored chunks.
func (p *EmbeddingPipeline) ProcessText(ctx context.Context, text string, metadata map[string]string) ([]domain.EmbeddingChunk, error) {
	return p.ProcessTexts(ctx, []string{text}, metadata)
}

// ProcessTexts chunks, embeds and stores several texts sharing metadata.
//
// Either every chunk is stored or none is: an embedding failure for any
// chunk returns *domain.EmbeddingError before the index is touched.
func (p *EmbeddingPipeline) ProcessTexts(ctx context.Context, texts []string, metadata map[string]string) ([]domain.EmbeddingChunk, error) {
	if p.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	logger.Section("Ingestion")
	parts := make([]string, 0, len(texts))
	for _, c := range p.chunker.ChunkAll(texts) {
		if strings.TrimSpace(c) != "" {
			parts = append(parts, c)
		}
	}
	logger.Debug("Chunked %d texts into %d chunks (size=%d overlap=%d)",
		len(texts), len(parts), p.chunker.ChunkSize(), p.chunker.Overlap())
	if len(parts) == 0 {
		return nil, nil
	}

	done := logger.Timed("embed batch")
	vectors, err := p.embedder.EmbedBatch(ctx, parts, "")
	done()
	if err != nil {
		var embErr *domain.EmbeddingError
		if errors.As(err, &embErr) {
			return nil, embErr
		}
		return nil, &domain.EmbeddingError{Index: 0, Err: err}
	}
	if len(vectors) != len(parts) {
		return nil, &domain.EmbeddingError{
			Index: len(vectors),
			Err:   fmt.Errorf("provider returned %d vectors for %d chunks", len(vectors), len(parts)),
		}
	}

	chunks := make([]domain.EmbeddingChunk, len(parts))
	for i, text := range parts {
		if len(vectors[i]) == 0 {
			return nil, &domain.EmbeddingError{Index: i, Err: domain.ErrEmptyResponse}
		}
		chunks[i] = domain.EmbeddingChunk{
			ID:        p.newID(),
			Text:      text,
			Embedding: vectors[i],
			Metadata:  copyMeta(metadata),
		}
	}

	if err := p.index.AddChunks(ctx, p.embedder.ModelName(), chunks); err != nil {
		return nil, err
	}
	logger.Info("Stored %d chunks", len(chunks))
	return chunks, nil
}

// Search embeds query with the same provider and returns the topK most
// similar chunks. model overrides the provider default when non-empty.
func (p *EmbeddingPipeline) Search(ctx context.Context, query string, topK int, model string) ([]domain.ScoredEmbeddingChunk, error) {
	if p.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	done := logger.Timed("embed query")
	vec, err := p.embedder.Embed(ctx, query, model)
	done()
	if err != nil {
		return nil, &domain.EmbeddingError{Index: -1, Err: err}
	}
	return p.index.SearchSimilar(ctx, vec, topK), nil
}

// ListModels returns the provider's embedding models.
func (p *EmbeddingPipeline) ListModels(ctx context.Context) ([]string, error) {
	if p.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	return p.embedder.ListModels(ctx)
}

func copyMeta(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
