package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/core/ports/driving"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// Ensure RAGService implements the interface.
var _ driving.RAGService = (*RAGService)(nil)

// RAGConfig configures retrieval and answering.
type RAGConfig struct {
	TopK           int
	MinScore       float64
	RetentionRatio float64
	Variant        domain.RAGVariant

	// Model overrides the embedding model for queries.
	Model string

	Temperature float64
	MaxTokens   int
}

// DefaultRAGConfig returns the retrieval defaults.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		TopK:           DefaultTopK,
		MinScore:       DefaultRerankMinScore,
		RetentionRatio: DefaultRetentionRatio,
		Variant:        domain.RAGVariantReranked,
		Temperature:    0.3,
		MaxTokens:      2000,
	}
}

// RAGConfigFromSettings maps persisted settings onto a RAGConfig.
func RAGConfigFromSettings(s domain.AppSettings) RAGConfig {
	cfg := DefaultRAGConfig()
	if s.RAG.TopK > 0 {
		cfg.TopK = s.RAG.TopK
	}
	if s.RAG.MinScore > 0 {
		cfg.MinScore = s.RAG.MinScore
	}
	if s.RAG.RetentionRatio > 0 {
		cfg.RetentionRatio = s.RAG.RetentionRatio
	}
	if s.RAG.Variant.IsValid() {
		cfg.Variant = s.RAG.Variant
	}
	if s.LLM.Temperature > 0 {
		cfg.Temperature = s.LLM.Temperature
	}
	if s.LLM.MaxTokens > 0 {
		cfg.MaxTokens = s.LLM.MaxTokens
	}
	return cfg
}

// RAGService builds retrieval contexts and prompts, and answers questions.
type RAGService struct {
	pipeline    *EmbeddingPipeline
	reranker    *Reranker
	chat        driven.ChatProvider
	promptStore driven.PromptStore
	cfg         RAGConfig
}

// NewRAGService creates a RAG service. chat may be nil, which only
// disables Answer.
func NewRAGService(pipeline *EmbeddingPipeline, reranker *Reranker, chat driven.ChatProvider, cfg RAGConfig) *RAGService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.RetentionRatio <= 0 || cfg.RetentionRatio > 1 {
		cfg.RetentionRatio = DefaultRetentionRatio
	}
	if !cfg.Variant.IsValid() {
		cfg.Variant = domain.RAGVariantReranked
	}
	return &RAGService{
		pipeline: pipeline,
		reranker: reranker,
		chat:     chat,
		cfg:      cfg,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *RAGService) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// SearchRelevantChunks retrieves TopK candidates. Any failure is logged and
// yields an empty result.
func (s *RAGService) SearchRelevantChunks(ctx context.Context, query string) []domain.ScoredEmbeddingChunk {
	logger.Section("Retrieval")
	logger.Debug("Query: %q", query)

	if strings.TrimSpace(query) == "" || s.pipeline == nil {
		return []domain.ScoredEmbeddingChunk{}
	}

	hits, err := s.pipeline.Search(ctx, query, s.cfg.TopK, s.cfg.Model)
	if err != nil {
		logger.Warn("Retrieval failed, continuing without context: %v", err)
		return []domain.ScoredEmbeddingChunk{}
	}

	for i, h := range hits {
		logger.Debug("  %d. %.3f %s", i+1, h.Similarity, chunkLabel(h.Chunk))
	}
	return hits
}

// BuildContext renders ranked chunks as a numbered source list.
// Returns "" for no chunks.
func (s *RAGService) BuildContext(chunks []domain.RankedChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] similarity: %.3f", i+1, c.Similarity)
		if c.Reranked {
			fmt.Fprintf(&b, ", lexical: %.3f, combined: %.3f", c.LexicalScore, c.CombinedScore)
		}
		b.WriteString("\n")

		for _, m := range []struct{ key, label string }{
			{domain.MetaTitle, "Title"},
			{domain.MetaFile, "File"},
			{domain.MetaURL, "URL"},
			{domain.MetaSource, "Source"},
		} {
			if v := c.Chunk.Meta(m.key); v != "" {
				fmt.Fprintf(&b, "%s: %s\n", m.label, v)
			}
		}
		b.WriteString(strings.TrimSpace(c.Chunk.Text))
	}
	return b.String()
}

// BuildRAGPrompt wraps question with the context. With no context the bare
// question is returned.
func (s *RAGService) BuildRAGPrompt(question, ragContext string) string {
	if strings.TrimSpace(ragContext) == "" {
		return question
	}
	tmpl := loadPrompt(s.promptStore, driven.PromptRAGWrapper, defaultRAGWrapperPrompt)
	return fmt.Sprintf(tmpl, ragContext, question)
}

// BuildComparison runs one retrieval and builds both variants from it.
//
// The reranked variant keeps chunks with a combined score of at least
// MinScore, up to max(1, round(candidates × RetentionRatio)). When the
// threshold removes everything, the full reranked list is used, so neither
// variant is empty while candidates exist.
func (s *RAGService) BuildComparison(ctx context.Context, question string) *domain.RAGComparisonResult {
	candidates := s.SearchRelevantChunks(ctx, question)

	baselineChunks := make([]domain.RankedChunk, len(candidates))
	for i, c := range candidates {
		baselineChunks[i] = domain.RankedChunk{Chunk: c.Chunk, Similarity: c.Similarity}
	}

	var reranked []domain.RankedChunk
	if s.reranker != nil {
		reranked = s.reranker.Rerank(question, candidates)
	} else {
		reranked = baselineChunks
	}

	retained, fallback := s.filterReranked(reranked)
	if fallback {
		logger.Warn("No chunk reached min score %.2f, using all %d reranked chunks", s.cfg.MinScore, len(reranked))
	}

	result := &domain.RAGComparisonResult{
		Question: question,
		Baseline: s.buildVariant(domain.RAGVariantBaseline, question, baselineChunks, len(candidates), false),
		Reranked: s.buildVariant(domain.RAGVariantReranked, question, retained, len(candidates), fallback),
	}

	logger.Debug("Comparison: baseline=%d chunks, reranked=%d chunks",
		result.Baseline.Stats.RetainedCount, result.Reranked.Stats.RetainedCount)
	return result
}

// Answer retrieves context for the configured variant and completes the
// prompt with the chat provider.
func (s *RAGService) Answer(ctx context.Context, question string) (*domain.RAGAnswer, error) {
	if s.chat == nil {
		return nil, domain.ErrLLMUnavailable
	}

	cmp := s.BuildComparison(ctx, question)
	variant := cmp.Variant(s.cfg.Variant)

	logger.Section("Answer")
	logger.Debug("Variant: %s, sources: %d", variant.Variant, len(variant.Chunks))

	resp, err := s.chat.Complete(ctx, driven.CompletionRequest{
		Messages:    []driven.ChatMessage{{Role: driven.RoleUser, Content: variant.Prompt}},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("complete RAG prompt: %w", err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return nil, fmt.Errorf("complete RAG prompt: %w", domain.ErrEmptyResponse)
	}

	return &domain.RAGAnswer{
		Question: question,
		Answer:   resp.Message.Content,
		Variant:  variant.Variant,
		Prompt:   variant.Prompt,
		Sources:  variant.Chunks,
		Usage:    resp.Usage,
	}, nil
}

// ContextFor returns the rendered context of the configured variant, or ""
// when nothing relevant was found.
func (s *RAGService) ContextFor(ctx context.Context, query string) string {
	return s.BuildComparison(ctx, query).Variant(s.cfg.Variant).Context
}

func (s *RAGService) filterReranked(reranked []domain.RankedChunk) ([]domain.RankedChunk, bool) {
	if len(reranked) == 0 {
		return []domain.RankedChunk{}, false
	}

	limit := int(math.Round(float64(len(reranked)) * s.cfg.RetentionRatio))
	if limit < 1 {
		limit = 1
	}

	kept := make([]domain.RankedChunk, 0, limit)
	for _, c := range reranked {
		if c.Score() >= s.cfg.MinScore {
			kept = append(kept, c)
			if len(kept) == limit {
				break
			}
		}
	}

	if len(kept) == 0 {
		return reranked, true
	}
	return kept, false
}

func (s *RAGService) buildVariant(
	v domain.RAGVariant, question string, chunks []domain.RankedChunk, candidates int, fallback bool,
) domain.RAGVariantContext {
	rendered := s.BuildContext(chunks)
	return domain.RAGVariantContext{
		Variant: v,
		Prompt:  s.BuildRAGPrompt(question, rendered),
		Context: rendered,
		Chunks:  chunks,
		Stats:   variantStats(chunks, candidates, fallback),
	}
}

func variantStats(chunks []domain.RankedChunk, candidates int, fallback bool) domain.RAGVariantStats {
	stats := domain.RAGVariantStats{
		CandidateCount: candidates,
		RetainedCount:  len(chunks),
		UsedFallback:   fallback,
	}
	if len(chunks) == 0 {
		return stats
	}

	var simSum, combinedSum float64
	stats.MaxSimilarity = math.Inf(-1)
	for _, c := range chunks {
		simSum += c.Similarity
		combinedSum += c.CombinedScore
		stats.MaxSimilarity = math.Max(stats.MaxSimilarity, c.Similarity)
	}
	n := float64(len(chunks))
	stats.AvgSimilarity = simSum / n
	stats.AvgCombinedScore = combinedSum / n
	return stats
}

func chunkLabel(c domain.EmbeddingChunk) string {
	for _, key := range []string{domain.MetaTitle, domain.MetaFile, domain.MetaURL} {
		if v := c.Meta(key); v != "" {
			return v
		}
	}
	return c.ID
}
