package cli

import (
	"context"
	"time"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

type mockSettingsService struct {
	settings    domain.AppSettings
	values      map[string]string
	validateErr error
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings(), values: map[string]string{}}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}
func (m *mockSettingsService) Save(s *domain.AppSettings) error { m.settings = *s; return nil }
func (m *mockSettingsService) Set(key, value string) error {
	if key == "bogus" {
		return domain.ErrInvalidInput
	}
	m.values[key] = value
	return nil
}
func (m *mockSettingsService) Keys() []string {
	return []string{"llm.provider", "llm.api_key", "rag.top_k"}
}
func (m *mockSettingsService) IsSecret(key string) bool {
	return key == "llm.api_key"
}
func (m *mockSettingsService) SetEmbeddingProvider(domain.AIProvider, string, string) error {
	return nil
}
func (m *mockSettingsService) SetLLMProvider(domain.AIProvider, string, string) error { return nil }
func (m *mockSettingsService) Validate() error                                        { return m.validateErr }
func (m *mockSettingsService) GetDefaults() domain.AppSettings                        { return domain.DefaultAppSettings() }
func (m *mockSettingsService) ValidateEmbeddingConfig() error                         { return nil }
func (m *mockSettingsService) ValidateLLMConfig() error                               { return nil }

type mockRAG struct {
	chunks     []domain.ScoredEmbeddingChunk
	answer     *domain.RAGAnswer
	comparison *domain.RAGComparisonResult
	context    string
	err        error
}

func (m *mockRAG) SearchRelevantChunks(context.Context, string) []domain.ScoredEmbeddingChunk {
	return m.chunks
}
func (m *mockRAG) BuildComparison(_ context.Context, q string) *domain.RAGComparisonResult {
	if m.comparison != nil {
		return m.comparison
	}
	return &domain.RAGComparisonResult{
		Question: q,
		Baseline: domain.RAGVariantContext{Variant: domain.RAGVariantBaseline},
		Reranked: domain.RAGVariantContext{Variant: domain.RAGVariantReranked},
	}
}
func (m *mockRAG) Answer(context.Context, string) (*domain.RAGAnswer, error) { return m.answer, m.err }
func (m *mockRAG) ContextFor(context.Context, string) string                 { return m.context }

type mockIngest struct {
	stats      *domain.IngestStats
	err        error
	rebuild    bool
	texts      []string
	watchCalls int
}

func (m *mockIngest) IngestText(_ context.Context, text string, _ map[string]string) (int, error) {
	m.texts = append(m.texts, text)
	return 2, m.err
}
func (m *mockIngest) IngestSource(_ context.Context, rebuild bool) (*domain.IngestStats, error) {
	m.rebuild = rebuild
	return m.stats, m.err
}
func (m *mockIngest) Watch(ctx context.Context, onChange func(domain.RawDocumentChange, error)) error {
	m.watchCalls++
	onChange(domain.RawDocumentChange{Type: domain.ChangeUpdated, Document: domain.RawDocument{URI: "notes.md"}}, nil)
	return nil
}

type mockBreakdown struct {
	breakdown  *domain.TaskBreakdown
	publish    *domain.PublishResult
	err        error
	gotContext string
	gotProject string
}

func (m *mockBreakdown) BreakdownTask(_ context.Context, _, ragContext string) (*domain.TaskBreakdown, error) {
	m.gotContext = ragContext
	return m.breakdown, m.err
}
func (m *mockBreakdown) PublishBreakdown(_ context.Context, _ *domain.TaskBreakdown, project string) (*domain.PublishResult, error) {
	m.gotProject = project
	return m.publish, nil
}

type mockExecutor struct {
	report    *domain.ExecutionReport
	history   []*domain.ExecutionReport
	err       error
	projectID string
}

func (m *mockExecutor) Run(_ context.Context, projectID string, onProgress domain.ProgressFunc) (*domain.ExecutionReport, error) {
	m.projectID = projectID
	onProgress(domain.ProgressEvent{Kind: domain.ProgressTaskSelected, Message: "Write docs", Time: time.Now()})
	onProgress(domain.ProgressEvent{Kind: domain.ProgressTaskClosed, Message: "closed Write docs", Time: time.Now()})
	return m.report, m.err
}
func (m *mockExecutor) History(context.Context, int) ([]*domain.ExecutionReport, error) {
	return m.history, nil
}

type mockReview struct {
	review *domain.Review
	ref    domain.PullRequestRef
}

func (m *mockReview) Review(_ context.Context, ref domain.PullRequestRef) (*domain.Review, error) {
	m.ref = ref
	return m.review, nil
}

type mockProjects struct{ ids map[string]string }

func (m *mockProjects) GetOrCreateProjectID(_ context.Context, name string) string {
	return m.ids[name]
}

type mockEmbedding struct{}

func (mockEmbedding) Embed(context.Context, string, string) ([]float32, error) { return nil, nil }
func (mockEmbedding) EmbedBatch(context.Context, []string, string) ([][]float32, error) {
	return nil, nil
}
func (mockEmbedding) ListModels(context.Context) ([]string, error) {
	return []string{"nomic-embed-text", "mxbai-embed-large"}, nil
}
func (mockEmbedding) ModelName() string          { return "nomic-embed-text" }
func (mockEmbedding) Ping(context.Context) error { return nil }
func (mockEmbedding) Close() error               { return nil }

type mockChat struct{}

func (mockChat) Complete(context.Context, driven.CompletionRequest) (*driven.CompletionResponse, error) {
	return &driven.CompletionResponse{}, nil
}
func (mockChat) SupportsTools() bool        { return true }
func (mockChat) ModelName() string          { return "gpt-4o-mini" }
func (mockChat) Ping(context.Context) error { return nil }
func (mockChat) Close() error               { return nil }

// testServices are the fakes installed by setupTestServices.
type testServices struct {
	settings  *mockSettingsService
	rag       *mockRAG
	ingest    *mockIngest
	breakdown *mockBreakdown
	executor  *mockExecutor
	review    *mockReview
	projects  *mockProjects
}

// setupTestServices installs fake services and returns a cleanup that
// restores the package state, including flag variables.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		settings: newMockSettingsService(),
		rag: &mockRAG{
			chunks: []domain.ScoredEmbeddingChunk{{
				Chunk: domain.EmbeddingChunk{
					ID:       "c1",
					Text:     "Redis is used as the cache layer.",
					Metadata: map[string]string{domain.MetaTitle: "Caching", domain.MetaFile: "docs/cache.md"},
				},
				Similarity: 0.87,
			}},
			answer: &domain.RAGAnswer{Answer: "Use Redis.", Variant: domain.RAGVariantReranked},
		},
		ingest: &mockIngest{stats: &domain.IngestStats{Files: 3, Skipped: 1, Chunks: 12}},
		breakdown: &mockBreakdown{
			breakdown: &domain.TaskBreakdown{
				MainTask: "Add caching",
				Subtasks: []domain.Subtask{
					{Title: "Write tests", Order: 2},
					{Title: "Add redis client", Order: 1, Priority: domain.Priority(4)},
				},
			},
			publish: &domain.PublishResult{ProjectID: "p1", TaskIDs: []string{"t1", "t2"}},
		},
		executor: &mockExecutor{report: &domain.ExecutionReport{RunID: "run-1", State: domain.StateDone, Iterations: 2}},
		review:   &mockReview{review: &domain.Review{Title: "Add cache", Text: "Looks good.", Files: 3}},
		projects: &mockProjects{ids: map[string]string{"Backend": "p-backend"}},
	}

	Configure(ts.settings, func(context.Context, *domain.AppSettings) (*Services, error) {
		return &Services{
			RAG:       ts.rag,
			Ingest:    ts.ingest,
			Breakdown: ts.breakdown,
			Executor:  ts.executor,
			Review:    ts.review,
			Projects:  ts.projects,
			Embedding: mockEmbedding{},
			Chat:      mockChat{},
		}, nil
	})

	return ts, func() {
		Configure(nil, nil)
		rootCmd.SetArgs(nil)
		searchLimit, searchJSON = 5, false
		indexRebuild, indexWatch, indexText = false, false, ""
		askShowSources, comparePrompts = false, false
		planProject, planNoRAG = "", false
		runProjectID, runHistory, runLimit = "", false, 10
	}
}
