package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "5", flag.DefValue)
}

func TestSearchCmd_PrintsResults(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("search", "cache")
	require.NoError(t, err)
	assert.Contains(t, out, "Results")
	assert.Contains(t, out, "[1] Caching")
	assert.Contains(t, out, "(0.870)")
	assert.Contains(t, out, "File: docs/cache.md")
	assert.Contains(t, out, "Redis is used as the cache layer.")
}

func TestSearchCmd_NoResults(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.rag.chunks = nil

	out, err := execute("search", "cache")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_JSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("search", "--json", "cache")
	require.NoError(t, err)

	var results []searchResultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "Caching", results[0].Title)
	assert.InDelta(t, 0.87, results[0].Similarity, 1e-9)
}

func TestSearchCmd_Limit(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	chunk := ts.rag.chunks[0]
	ts.rag.chunks = []domain.ScoredEmbeddingChunk{chunk, chunk, chunk}

	out, err := execute("search", "-n", "2", "cache")
	require.NoError(t, err)
	assert.Contains(t, out, "[2]")
	assert.NotContains(t, out, "[3]")
}

func TestChunkLabel(t *testing.T) {
	assert.Equal(t, "T", chunkLabel(domain.EmbeddingChunk{ID: "id", Metadata: map[string]string{domain.MetaTitle: "T", domain.MetaFile: "f"}}))
	assert.Equal(t, "f", chunkLabel(domain.EmbeddingChunk{ID: "id", Metadata: map[string]string{domain.MetaFile: "f"}}))
	assert.Equal(t, "id", chunkLabel(domain.EmbeddingChunk{ID: "id"}))
}
