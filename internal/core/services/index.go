package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// DefaultTopK is the number of search hits returned when none is given.
const DefaultTopK = 5

// EmbeddingIndex is the persisted collection of embedded chunks.
//
// Search is brute force: O(n·d) per query for n chunks of dimension d.
// That is adequate for a single local knowledge base.
//
// The index assumes a single writer. AddChunks is read-modify-write without
// locking across processes; two concurrent writers can lose each other's
// chunks.
type EmbeddingIndex struct {
	store driven.IndexStore
}

// NewEmbeddingIndex creates an index over the given store.
func NewEmbeddingIndex(store driven.IndexStore) *EmbeddingIndex {
	return &EmbeddingIndex{store: store}
}

// LoadIndex returns the stored index, or nil when none exists or it cannot be
// read. Callers treat nil as an empty index.
func (x *EmbeddingIndex) LoadIndex(ctx context.Context) *domain.EmbeddingIndexData {
	data, err := x.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Embedding index unreadable, treating as empty: %v", err)
		}
		return nil
	}
	return data
}

// SaveIndex persists the whole index.
func (x *EmbeddingIndex) SaveIndex(ctx context.Context, data *domain.EmbeddingIndexData) error {
	if err := x.store.Save(ctx, data); err != nil {
		return fmt.Errorf("save embedding index: %w", err)
	}
	return nil
}

// AddChunks appends chunks to the stored index. The batch is rejected with
// domain.ErrDuplicateChunk if any ID is already present or repeated.
func (x *EmbeddingIndex) AddChunks(ctx context.Context, model string, chunks []domain.EmbeddingChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	data := x.LoadIndex(ctx)
	if data == nil {
		data = domain.NewEmbeddingIndexData(model)
	}
	if data.Model == "" {
		data.Model = model
	} else if model != "" && data.Model != model {
		logger.Warn("Adding %s vectors to an index built with %s", model, data.Model)
	}

	ids := data.IDs()
	for i := range chunks {
		if _, dup := ids[chunks[i].ID]; dup {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateChunk, chunks[i].ID)
		}
		ids[chunks[i].ID] = struct{}{}
	}

	data.Chunks = append(data.Chunks, chunks...)
	logger.Debug("Index now holds %d chunks", len(data.Chunks))
	return x.SaveIndex(ctx, data)
}

// Clear removes every chunk.
func (x *EmbeddingIndex) Clear(ctx context.Context) error {
	if err := x.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear embedding index: %w", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (x *EmbeddingIndex) Count(ctx context.Context) int {
	return x.LoadIndex(ctx).Len()
}

// SearchSimilar returns the topK chunks most similar to query, highest first.
// Equal similarities keep their index order.
func (x *EmbeddingIndex) SearchSimilar(ctx context.Context, query []float32, topK int) []domain.ScoredEmbeddingChunk {
	if topK <= 0 {
		topK = DefaultTopK
	}

	data := x.LoadIndex(ctx)
	if data.Len() == 0 {
		return []domain.ScoredEmbeddingChunk{}
	}

	scored := make([]domain.ScoredEmbeddingChunk, len(data.Chunks))
	for i := range data.Chunks {
		scored[i] = domain.ScoredEmbeddingChunk{
			Chunk:      data.Chunks[i],
			Similarity: CosineSimilarity(query, data.Chunks[i].Embedding),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different length, empty vectors and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push identical vectors marginally past ±1.
	return math.Max(-1, math.Min(1, sim))
}
