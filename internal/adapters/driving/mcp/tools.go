package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// SearchInput is the input schema for the rag_search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the text to find related knowledge base chunks for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of chunks to return (default 5)"`
}

// SearchOutput is the output schema for the rag_search tool.
type SearchOutput struct {
	Results []ChunkOutput `json:"results"`
	Count   int           `json:"count"`
}

// ChunkOutput represents a single retrieved chunk.
type ChunkOutput struct {
	Title         string  `json:"title,omitempty"`
	File          string  `json:"file,omitempty"`
	Source        string  `json:"source,omitempty"`
	Text          string  `json:"text"`
	Similarity    float64 `json:"similarity"`
	CombinedScore float64 `json:"combined_score,omitempty"`
}

// CompareInput is the input schema for the rag_compare tool.
type CompareInput struct {
	Question string `json:"question" jsonschema:"the question to retrieve context for"`
}

// CompareOutput is the output schema for the rag_compare tool.
type CompareOutput struct {
	Question string        `json:"question"`
	Baseline VariantOutput `json:"baseline"`
	Reranked VariantOutput `json:"reranked"`
}

// VariantOutput describes one retrieval variant.
type VariantOutput struct {
	Candidates       int           `json:"candidates"`
	Retained         int           `json:"retained"`
	AvgSimilarity    float64       `json:"avg_similarity"`
	MaxSimilarity    float64       `json:"max_similarity"`
	AvgCombinedScore float64       `json:"avg_combined_score,omitempty"`
	UsedFallback     bool          `json:"used_fallback,omitempty"`
	Chunks           []ChunkOutput `json:"chunks"`
}

// BreakdownInput is the input schema for the breakdown_task tool.
type BreakdownInput struct {
	Request    string `json:"request" jsonschema:"the feature or task to break into subtasks"`
	UseContext bool   `json:"use_context,omitempty" jsonschema:"add knowledge base context to the prompt"`
	Project    string `json:"project,omitempty" jsonschema:"publish the subtasks to this Todoist project when set"`
}

// BreakdownOutput is the output schema for the breakdown_task tool.
type BreakdownOutput struct {
	MainTask  string           `json:"main_task"`
	Subtasks  []domain.Subtask `json:"subtasks"`
	ProjectID string           `json:"project_id,omitempty"`
	TaskIDs   []string         `json:"task_ids,omitempty"`
	Failed    []string         `json:"failed,omitempty"`
}

// DefaultSearchLimit is used when rag_search gets no limit.
const DefaultSearchLimit = 5

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rag_search",
		Description: "Search the knowledge base for chunks similar to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rag_compare",
		Description: "Compare baseline and reranked retrieval for a question",
	}, s.handleCompare)

	if s.ports.Breakdown != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "breakdown_task",
			Description: "Break a feature request into ordered subtasks, optionally publishing them to Todoist",
		}, s.handleBreakdown)
	}
}

// handleSearch handles the rag_search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	results := s.ports.RAG.SearchRelevantChunks(ctx, input.Query)
	if len(results) > limit {
		results = results[:limit]
	}

	output := SearchOutput{
		Results: make([]ChunkOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		output.Results[i] = chunkOutput(results[i].Chunk)
		output.Results[i].Similarity = results[i].Similarity
	}

	return nil, output, nil
}

// handleCompare handles the rag_compare tool invocation.
func (s *Server) handleCompare(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CompareInput,
) (*mcp.CallToolResult, CompareOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, CompareOutput{}, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	result := s.ports.RAG.BuildComparison(ctx, input.Question)
	return nil, CompareOutput{
		Question: result.Question,
		Baseline: variantOutput(result.Baseline),
		Reranked: variantOutput(result.Reranked),
	}, nil
}

// handleBreakdown handles the breakdown_task tool invocation.
func (s *Server) handleBreakdown(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BreakdownInput,
) (*mcp.CallToolResult, BreakdownOutput, error) {
	if s.ports.Breakdown == nil {
		return nil, BreakdownOutput{}, ErrBreakdownUnavailable
	}
	if strings.TrimSpace(input.Request) == "" {
		return nil, BreakdownOutput{}, fmt.Errorf("%w: request is required", domain.ErrInvalidInput)
	}

	var ragContext string
	if input.UseContext {
		ragContext = s.ports.RAG.ContextFor(ctx, input.Request)
	}

	breakdown, err := s.ports.Breakdown.BreakdownTask(ctx, input.Request, ragContext)
	if err != nil {
		return nil, BreakdownOutput{}, err
	}

	output := BreakdownOutput{
		MainTask: breakdown.MainTask,
		Subtasks: breakdown.SortedSubtasks(),
	}
	if input.Project == "" {
		return nil, output, nil
	}

	published, err := s.ports.Breakdown.PublishBreakdown(ctx, breakdown, input.Project)
	if err != nil {
		return nil, BreakdownOutput{}, fmt.Errorf("publishing to %q: %w", input.Project, err)
	}
	output.ProjectID = published.ProjectID
	output.TaskIDs = published.TaskIDs
	output.Failed = published.Failed

	return nil, output, nil
}

func chunkOutput(c domain.EmbeddingChunk) ChunkOutput {
	return ChunkOutput{
		Title:  c.Meta(domain.MetaTitle),
		File:   c.Meta(domain.MetaFile),
		Source: c.Meta(domain.MetaSource),
		Text:   c.Text,
	}
}

func variantOutput(v domain.RAGVariantContext) VariantOutput {
	out := VariantOutput{
		Candidates:       v.Stats.CandidateCount,
		Retained:         v.Stats.RetainedCount,
		AvgSimilarity:    v.Stats.AvgSimilarity,
		MaxSimilarity:    v.Stats.MaxSimilarity,
		AvgCombinedScore: v.Stats.AvgCombinedScore,
		UsedFallback:     v.Stats.UsedFallback,
		Chunks:           make([]ChunkOutput, len(v.Chunks)),
	}
	for i, rc := range v.Chunks {
		out.Chunks[i] = chunkOutput(rc.Chunk)
		out.Chunks[i].Similarity = rc.Similarity
		out.Chunks[i].CombinedScore = rc.CombinedScore
	}
	return out
}
