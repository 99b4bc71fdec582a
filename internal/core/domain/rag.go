package domain

// RAGVariant names one side of an A/B retrieval comparison.
type RAGVariant string

// Available variants.
const (
	// RAGVariantBaseline uses raw similarity order with no filtering.
	RAGVariantBaseline RAGVariant = "baseline"

	// RAGVariantReranked uses the hybrid reranker with score filtering.
	RAGVariantReranked RAGVariant = "reranked"
)

// String returns the string representation.
func (v RAGVariant) String() string {
	return string(v)
}

// IsValid returns true if the variant is recognised.
func (v RAGVariant) IsValid() bool {
	return v == RAGVariantBaseline || v == RAGVariantReranked
}

// RAGVariantStats summarises the candidates behind a variant.
type RAGVariantStats struct {
	// CandidateCount is the number of chunks retrieved before filtering.
	CandidateCount int

	// RetainedCount is the number of chunks kept in the variant.
	RetainedCount int

	// AvgSimilarity and MaxSimilarity describe the retained chunks.
	AvgSimilarity float64
	MaxSimilarity float64

	// AvgCombinedScore is zero for the baseline variant.
	AvgCombinedScore float64

	// UsedFallback is set when the score filter removed every candidate and
	// the full reranked set was used instead.
	UsedFallback bool
}

// RAGVariantContext is the retrieval context and prompt built for one variant.
type RAGVariantContext struct {
	Variant RAGVariant
	Prompt  string
	Context string
	Chunks  []RankedChunk
	Stats   RAGVariantStats
}

// HasContext reports whether the variant carries any retrieved chunks.
func (c RAGVariantContext) HasContext() bool {
	return len(c.Chunks) > 0
}

// RAGComparisonResult holds both variants for one question.
type RAGComparisonResult struct {
	Question string
	Baseline RAGVariantContext
	Reranked RAGVariantContext
}

// Variant returns the context for the named variant, defaulting to reranked.
func (r *RAGComparisonResult) Variant(v RAGVariant) RAGVariantContext {
	if v == RAGVariantBaseline {
		return r.Baseline
	}
	return r.Reranked
}

// RAGAnswer is a completed RAG question.
type RAGAnswer struct {
	Question string
	Answer   string
	Variant  RAGVariant
	Prompt   string
	Sources  []RankedChunk
	Usage    Usage
}

// Usage reports token consumption of one model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}
