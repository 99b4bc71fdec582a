package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/taskrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/postprocessors/chunker"
)

func newTestPipeline(embedder *mockEmbeddingService) (*EmbeddingPipeline, *memory.IndexStore) {
	store := memory.NewIndexStore()
	var svc *EmbeddingPipeline
	if embedder == nil {
		svc = NewEmbeddingPipeline(nil, NewEmbeddingIndex(store), nil)
	} else {
		svc = NewEmbeddingPipeline(embedder, NewEmbeddingIndex(store), chunker.New(chunker.WithChunkSize(40), chunker.WithOverlap(5)))
	}
	return svc, store
}

func TestEmbeddingPipeline_Unavailable(t *testing.T) {
	p, _ := newTestPipeline(nil)
	ctx := context.Background()

	assert.False(t, p.Available())

	_, err := p.ProcessText(ctx, "hello", nil)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	_, err = p.Search(ctx, "hello", 3, "")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	_, err = p.ListModels(ctx)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbeddingPipeline_ProcessText(t *testing.T) {
	embedder := newMockEmbedder()
	p, _ := newTestPipeline(embedder)
	ctx := context.Background()

	meta := map[string]string{domain.MetaTitle: "Guide", domain.MetaFile: "docs/guide.md"}
	text := strings.Repeat("word ", 30)

	chunks, err := p.ProcessText(ctx, text, meta)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	ids := make(map[string]bool)
	for _, c := range chunks {
		assert.NotEmpty(t, c.ID)
		assert.False(t, ids[c.ID], "chunk IDs must be unique")
		ids[c.ID] = true
		assert.Equal(t, "Guide", c.Meta(domain.MetaTitle))
		assert.Equal(t, []float32{1, 0, 0}, c.Embedding)
	}

	// Callers' metadata maps are not shared with stored chunks.
	meta[domain.MetaTitle] = "changed"
	assert.Equal(t, "Guide", chunks[0].Meta(domain.MetaTitle))

	data := p.Index().LoadIndex(ctx)
	require.NotNil(t, data)
	assert.Equal(t, len(chunks), data.Len())
	assert.Equal(t, "mock-embed", data.Model)

	require.Len(t, embedder.batches, 1)
	assert.Len(t, embedder.batches[0], len(chunks))
}

func TestEmbeddingPipeline_ProcessTextsBlankInput(t *testing.T) {
	embedder := newMockEmbedder()
	p, store := newTestPipeline(embedder)

	chunks, err := p.ProcessTexts(context.Background(), []string{"", "   \n\t"}, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Empty(t, embedder.batches)
	assert.Equal(t, 0, store.Saves())
}

func TestEmbeddingPipeline_FailureStoresNothing(t *testing.T) {
	ctx := context.Background()

	t.Run("one chunk fails", func(t *testing.T) {
		embedder := newMockEmbedder()
		embedder.failAt = 2
		p, store := newTestPipeline(embedder)

		_, err := p.ProcessText(ctx, strings.Repeat("lorem ipsum ", 20), nil)
		require.Error(t, err)

		var embErr *domain.EmbeddingError
		require.True(t, errors.As(err, &embErr))
		assert.Equal(t, 2, embErr.Index)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Equal(t, 0, store.Saves())
		assert.Equal(t, 0, p.Index().Count(ctx))
	})

	t.Run("plain provider error", func(t *testing.T) {
		embedder := newMockEmbedder()
		embedder.batchErr = errors.New("connection refused")
		p, store := newTestPipeline(embedder)

		_, err := p.ProcessText(ctx, "short text", nil)
		var embErr *domain.EmbeddingError
		require.True(t, errors.As(err, &embErr))
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, 0, store.Saves())
	})

	t.Run("empty vector", func(t *testing.T) {
		embedder := newMockEmbedder()
		embedder.vectors["short text"] = []float32{}
		p, store := newTestPipeline(embedder)

		_, err := p.ProcessText(ctx, "short text", nil)
		assert.ErrorIs(t, err, domain.ErrEmptyResponse)
		assert.Equal(t, 0, store.Saves())
	})

	t.Run("earlier ingestions survive", func(t *testing.T) {
		embedder := newMockEmbedder()
		p, _ := newTestPipeline(embedder)

		_, err := p.ProcessText(ctx, "first document", nil)
		require.NoError(t, err)

		embedder.batchErr = errors.New("quota")
		_, err = p.ProcessText(ctx, "second document", nil)
		require.Error(t, err)
		assert.Equal(t, 1, p.Index().Count(ctx))
	})
}

func TestEmbeddingPipeline_Search(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder()
	embedder.vectors["cats purr"] = []float32{1, 0}
	embedder.vectors["dogs bark"] = []float32{0, 1}
	embedder.vectors["what do cats do"] = []float32{0.9, 0.1}
	p, _ := newTestPipeline(embedder)

	_, err := p.ProcessTexts(ctx, []string{"cats purr", "dogs bark"}, nil)
	require.NoError(t, err)

	hits, err := p.Search(ctx, "what do cats do", 1, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "cats purr", hits[0].Chunk.Text)

	embedder.embedErr = errors.New("timeout")
	_, err = p.Search(ctx, "anything", 1, "")
	var embErr *domain.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, -1, embErr.Index)
}

func TestEmbeddingPipeline_ListModels(t *testing.T) {
	p, _ := newTestPipeline(newMockEmbedder())
	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mock-embed"}, models)
}
