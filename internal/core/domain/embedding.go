package domain

import "time"

// Well-known chunk metadata keys. They are rendered into RAG context
// when present.
const (
	MetaTitle  = "title"
	MetaFile   = "file"
	MetaURL    = "url"
	MetaSource = "source"
)

// EmbeddingChunk is the retrieval unit of the embedding index.
// Chunks are immutable once created; identity is ID.
type EmbeddingChunk struct {
	// ID is a generated UUID.
	ID string `json:"id"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Embedding is the vector produced by the embedding provider.
	Embedding []float32 `json:"embedding"`

	// Metadata holds caller-supplied attributes (title, file, url, source).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Meta returns the metadata value for key, or "" when absent.
func (c EmbeddingChunk) Meta(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}

// EmbeddingIndexData is the durable unit of the index. The whole structure
// is read, appended to and rewritten on every update.
type EmbeddingIndexData struct {
	// Chunks never contains two entries with the same ID.
	Chunks []EmbeddingChunk `json:"chunks"`

	// CreatedAt is when the index was first written.
	CreatedAt time.Time `json:"createdAt"`

	// Model is the embedding model that produced the vectors.
	Model string `json:"model"`
}

// NewEmbeddingIndexData returns an empty index for the given model.
func NewEmbeddingIndexData(model string) *EmbeddingIndexData {
	return &EmbeddingIndexData{
		Chunks:    []EmbeddingChunk{},
		CreatedAt: time.Now().UTC(),
		Model:     model,
	}
}

// Len returns the number of stored chunks.
func (d *EmbeddingIndexData) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Chunks)
}

// IDs returns the set of chunk IDs currently stored.
func (d *EmbeddingIndexData) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, d.Len())
	if d == nil {
		return ids
	}
	for i := range d.Chunks {
		ids[d.Chunks[i].ID] = struct{}{}
	}
	return ids
}

// ScoredEmbeddingChunk is a search hit. Similarity is cosine similarity in [-1, 1].
type ScoredEmbeddingChunk struct {
	Chunk      EmbeddingChunk
	Similarity float64
}

// RankedChunk is a chunk after (optional) reranking.
// Baseline results leave Reranked false and the lexical/combined scores zero.
type RankedChunk struct {
	Chunk      EmbeddingChunk
	Similarity float64

	// LexicalScore is the query-token overlap ratio in [0, 1].
	LexicalScore float64

	// CombinedScore blends similarity and lexical score with the reranker weights.
	CombinedScore float64

	// Reranked reports whether LexicalScore and CombinedScore were computed.
	Reranked bool
}

// Score returns the value the chunk is ordered by.
func (r RankedChunk) Score() float64 {
	if r.Reranked {
		return r.CombinedScore
	}
	return r.Similarity
}
