package services

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// Reranker defaults.
const (
	DefaultEmbeddingWeight = 0.65
	DefaultLexicalWeight   = 0.35
	DefaultMinTokenSize    = 2
	DefaultRerankMinScore  = 0.35
	DefaultRetentionRatio  = 0.6

	weightTolerance = 0.01
)

// nonTokenChars matches everything the tokenizer discards after lowercasing.
// Cyrillic is kept alongside ASCII letters and digits.
var nonTokenChars = regexp.MustCompile(`[^a-z0-9а-яё\s]+`)

// RerankConfig configures the hybrid reranker.
type RerankConfig struct {
	EmbeddingWeight float64
	LexicalWeight   float64
	MinTokenSize    int
}

// DefaultRerankConfig returns the default weights.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		EmbeddingWeight: DefaultEmbeddingWeight,
		LexicalWeight:   DefaultLexicalWeight,
		MinTokenSize:    DefaultMinTokenSize,
	}
}

// Reranker blends embedding similarity with query-token overlap.
type Reranker struct {
	cfg RerankConfig
}

// NewReranker validates cfg and creates a reranker. The two weights must sum
// to 1.0 within ±0.01.
func NewReranker(cfg RerankConfig) (*Reranker, error) {
	if math.Abs(cfg.EmbeddingWeight+cfg.LexicalWeight-1.0) > weightTolerance {
		return nil, fmt.Errorf("%w: embedding %.2f + lexical %.2f",
			domain.ErrInvalidRerankWeights, cfg.EmbeddingWeight, cfg.LexicalWeight)
	}
	if cfg.EmbeddingWeight < 0 || cfg.LexicalWeight < 0 {
		return nil, fmt.Errorf("%w: weights must not be negative", domain.ErrInvalidRerankWeights)
	}
	if cfg.MinTokenSize <= 0 {
		cfg.MinTokenSize = DefaultMinTokenSize
	}
	return &Reranker{cfg: cfg}, nil
}

// Config returns the validated configuration.
func (r *Reranker) Config() RerankConfig {
	return r.cfg
}

// Rerank scores every candidate and returns them by descending combined
// score. Ties keep the input order.
func (r *Reranker) Rerank(query string, candidates []domain.ScoredEmbeddingChunk) []domain.RankedChunk {
	if len(candidates) == 0 {
		return []domain.RankedChunk{}
	}

	queryTokens := r.tokenSet(query)

	ranked := make([]domain.RankedChunk, len(candidates))
	for i, c := range candidates {
		lexical := r.lexicalScore(queryTokens, c.Chunk.Text)
		ranked[i] = domain.RankedChunk{
			Chunk:         c.Chunk,
			Similarity:    c.Similarity,
			LexicalScore:  lexical,
			CombinedScore: r.cfg.EmbeddingWeight*c.Similarity + r.cfg.LexicalWeight*lexical,
			Reranked:      true,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CombinedScore > ranked[j].CombinedScore
	})
	return ranked
}

// Tokenize lowercases text, drops characters outside letters, digits and
// whitespace, and returns the tokens of at least MinTokenSize characters.
// Dropped characters do not split words: "don't" is the single token "dont".
func (r *Reranker) Tokenize(text string) []string {
	cleaned := nonTokenChars.ReplaceAllString(strings.ToLower(text), "")
	fields := strings.Fields(cleaned)

	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= r.cfg.MinTokenSize {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func (r *Reranker) tokenSet(text string) map[string]struct{} {
	tokens := r.Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// lexicalScore is |Q ∩ C| / |Q| over distinct tokens, 0 when Q is empty.
func (r *Reranker) lexicalScore(query map[string]struct{}, text string) float64 {
	if len(query) == 0 {
		return 0
	}

	chunk := r.tokenSet(text)
	matched := 0
	for t := range query {
		if _, ok := chunk[t]; ok {
			matched++
		}
	}

	score := float64(matched) / float64(len(query))
	return math.Max(0, math.Min(1, score))
}
