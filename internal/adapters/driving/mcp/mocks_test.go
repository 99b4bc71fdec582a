package mcp

import (
	"context"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// mockRAGService is a mock implementation of driving.RAGService.
type mockRAGService struct {
	chunks     []domain.ScoredEmbeddingChunk
	comparison *domain.RAGComparisonResult
	context    string
	contextFor []string
}

func (m *mockRAGService) SearchRelevantChunks(_ context.Context, _ string) []domain.ScoredEmbeddingChunk {
	return m.chunks
}

func (m *mockRAGService) BuildComparison(_ context.Context, question string) *domain.RAGComparisonResult {
	if m.comparison == nil {
		return &domain.RAGComparisonResult{Question: question}
	}
	return m.comparison
}

func (m *mockRAGService) Answer(_ context.Context, question string) (*domain.RAGAnswer, error) {
	return &domain.RAGAnswer{Question: question}, nil
}

func (m *mockRAGService) ContextFor(_ context.Context, query string) string {
	m.contextFor = append(m.contextFor, query)
	return m.context
}

// mockBreakdownService is a mock implementation of driving.BreakdownService.
type mockBreakdownService struct {
	breakdown  *domain.TaskBreakdown
	publish    *domain.PublishResult
	err        error
	publishErr error

	gotContext string
	gotProject string
}

func (m *mockBreakdownService) BreakdownTask(_ context.Context, _, ragContext string) (*domain.TaskBreakdown, error) {
	m.gotContext = ragContext
	return m.breakdown, m.err
}

func (m *mockBreakdownService) PublishBreakdown(
	_ context.Context, _ *domain.TaskBreakdown, projectName string,
) (*domain.PublishResult, error) {
	m.gotProject = projectName
	return m.publish, m.publishErr
}

// mockExecutorService is a mock implementation of driving.ExecutorService.
type mockExecutorService struct {
	reports []*domain.ExecutionReport
	err     error
}

func (m *mockExecutorService) Run(_ context.Context, _ string, _ domain.ProgressFunc) (*domain.ExecutionReport, error) {
	return nil, m.err
}

func (m *mockExecutorService) History(_ context.Context, limit int) ([]*domain.ExecutionReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.reports) > limit {
		return m.reports[:limit], nil
	}
	return m.reports, nil
}
