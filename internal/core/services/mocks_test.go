package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Vectors are looked up by exact text; unknown texts get fallback.
type mockEmbeddingService struct {
	vectors  map[string][]float32
	fallback []float32
	model    string

	embedErr error
	batchErr error
	// failAt makes EmbedBatch fail for the text at that position (-1 disables).
	failAt int

	mu      sync.Mutex
	batches [][]string
}

func newMockEmbedder() *mockEmbeddingService {
	return &mockEmbeddingService{
		vectors:  make(map[string][]float32),
		fallback: []float32{1, 0, 0},
		model:    "mock-embed",
		failAt:   -1,
	}
}

func (m *mockEmbeddingService) vector(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return m.fallback
}

func (m *mockEmbeddingService) Embed(_ context.Context, text, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string, _ string) ([][]float32, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	m.mu.Unlock()

	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if i == m.failAt {
			return nil, &domain.EmbeddingError{Index: i, Err: errors.New("provider exploded")}
		}
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbeddingService) ListModels(_ context.Context) ([]string, error) {
	return []string{m.model}, nil
}

func (m *mockEmbeddingService) ModelName() string          { return m.model }
func (m *mockEmbeddingService) Ping(context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error               { return nil }

// mockChatProvider implements driven.ChatProvider with scripted responses.
// When the script runs out, respond is used if set, otherwise a plain
// "done" answer is returned.
type mockChatProvider struct {
	tools     bool
	responses []*driven.CompletionResponse
	errs      []error
	respond   func(req driven.CompletionRequest) (*driven.CompletionResponse, error)

	mu       sync.Mutex
	requests []driven.CompletionRequest
}

func (m *mockChatProvider) Complete(_ context.Context, req driven.CompletionRequest) (*driven.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.requests)
	cp := req
	cp.Messages = append([]driven.ChatMessage(nil), req.Messages...)
	m.requests = append(m.requests, cp)

	if n < len(m.errs) && m.errs[n] != nil {
		return nil, m.errs[n]
	}
	if n < len(m.responses) {
		return m.responses[n], nil
	}
	if m.respond != nil {
		return m.respond(req)
	}
	return textResponse("done"), nil
}

func (m *mockChatProvider) SupportsTools() bool        { return m.tools }
func (m *mockChatProvider) ModelName() string          { return "mock-chat" }
func (m *mockChatProvider) Ping(context.Context) error { return nil }
func (m *mockChatProvider) Close() error               { return nil }

func (m *mockChatProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockChatProvider) lastRequest() driven.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func textResponse(content string) *driven.CompletionResponse {
	return &driven.CompletionResponse{
		Message:      driven.ChatMessage{Role: driven.RoleAssistant, Content: content},
		FinishReason: "stop",
	}
}

func toolResponse(calls ...driven.ToolCall) *driven.CompletionResponse {
	return &driven.CompletionResponse{
		Message:      driven.ChatMessage{Role: driven.RoleAssistant, ToolCalls: calls},
		FinishReason: "tool_calls",
	}
}

// mockTaskManager implements driven.TaskManager with testify/mock.
type mockTaskManager struct {
	mock.Mock
}

func (m *mockTaskManager) ListTasks(ctx context.Context, projectID string, filter domain.TaskFilter) ([]domain.Task, error) {
	args := m.Called(ctx, projectID, filter)
	tasks, _ := args.Get(0).([]domain.Task)
	return tasks, args.Error(1)
}

func (m *mockTaskManager) CreateTask(ctx context.Context, task domain.TaskCreate) (*domain.Task, error) {
	args := m.Called(ctx, task)
	created, _ := args.Get(0).(*domain.Task)
	return created, args.Error(1)
}

func (m *mockTaskManager) UpdateTask(ctx context.Context, id string, update domain.TaskUpdate) (*domain.Task, error) {
	args := m.Called(ctx, id, update)
	updated, _ := args.Get(0).(*domain.Task)
	return updated, args.Error(1)
}

func (m *mockTaskManager) CloseTask(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTaskManager) DeleteTask(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTaskManager) ListProjects(ctx context.Context) ([]domain.Project, error) {
	args := m.Called(ctx)
	projects, _ := args.Get(0).([]domain.Project)
	return projects, args.Error(1)
}

func (m *mockTaskManager) CreateProject(ctx context.Context, name string) (*domain.Project, error) {
	args := m.Called(ctx, name)
	project, _ := args.Get(0).(*domain.Project)
	return project, args.Error(1)
}

// fakeTaskManager is a stateful driven.TaskManager: closed tasks disappear
// from listings, as in the real service.
type fakeTaskManager struct {
	mu       sync.Mutex
	tasks    []domain.Task
	closeErr map[string]error
	closed   []string
	created  []domain.TaskCreate
	nextID   int
}

func newFakeTaskManager(contents ...string) *fakeTaskManager {
	f := &fakeTaskManager{closeErr: make(map[string]error)}
	for i, c := range contents {
		f.tasks = append(f.tasks, domain.Task{ID: fmt.Sprintf("t%d", i+1), Content: c, ProjectID: "p1"})
	}
	return f
}

func (f *fakeTaskManager) ListTasks(_ context.Context, _ string, _ domain.TaskFilter) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Task(nil), f.tasks...), nil
}

func (f *fakeTaskManager) CreateTask(_ context.Context, task domain.TaskCreate) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.created = append(f.created, task)
	return &domain.Task{ID: fmt.Sprintf("new%d", f.nextID), Content: task.Content, ProjectID: task.ProjectID}, nil
}

func (f *fakeTaskManager) UpdateTask(_ context.Context, id string, _ domain.TaskUpdate) (*domain.Task, error) {
	return &domain.Task{ID: id}, nil
}

func (f *fakeTaskManager) CloseTask(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.closeErr[id]; err != nil {
		return err
	}
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			f.closed = append(f.closed, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeTaskManager) DeleteTask(ctx context.Context, id string) error {
	return f.CloseTask(ctx, id)
}

func (f *fakeTaskManager) ListProjects(context.Context) ([]domain.Project, error) {
	return []domain.Project{{ID: "p1", Name: "Demo"}}, nil
}

func (f *fakeTaskManager) CreateProject(_ context.Context, name string) (*domain.Project, error) {
	return &domain.Project{ID: "p-" + strings.ToLower(name), Name: name}, nil
}

// mockProjectTools implements driven.ProjectTools over an in-memory file map.
type mockProjectTools struct {
	mu      sync.Mutex
	files   map[string]string
	readErr error
	// block makes Read wait for ctx cancellation.
	block bool
}

func newMockProjectTools(files map[string]string) *mockProjectTools {
	if files == nil {
		files = make(map[string]string)
	}
	return &mockProjectTools{files: files}
}

func (m *mockProjectTools) List(_ context.Context, _ string) ([]domain.FileEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.FileEntry
	for p, c := range m.files {
		out = append(out, domain.FileEntry{Path: p, Size: int64(len(c))})
	}
	return out, nil
}

func (m *mockProjectTools) Read(ctx context.Context, path string) (string, error) {
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.readErr != nil {
		return "", m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	return c, nil
}

func (m *mockProjectTools) Write(_ context.Context, path, content string) error {
	if strings.HasPrefix(path, "..") {
		return domain.ErrSandboxViolation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
	return nil
}

func (m *mockProjectTools) SearchInFiles(_ context.Context, query, _ string) ([]domain.FileMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.FileMatch
	for p, c := range m.files {
		for i, line := range strings.Split(c, "\n") {
			if strings.Contains(line, query) {
				out = append(out, domain.FileMatch{Path: p, Line: i + 1, Text: line})
			}
		}
	}
	return out, nil
}

func (m *mockProjectTools) GetInfo(_ context.Context, path string) (*domain.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.files[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.FileInfo{Path: path, Size: int64(len(c))}, nil
}

func (m *mockProjectTools) Root() string { return "/work/demo" }

// failingIndexStore implements driven.IndexStore and fails every call.
type failingIndexStore struct {
	err error
}

func (s *failingIndexStore) Load(context.Context) (*domain.EmbeddingIndexData, error) {
	return nil, s.err
}

func (s *failingIndexStore) Save(context.Context, *domain.EmbeddingIndexData) error {
	return s.err
}

func (s *failingIndexStore) Clear(context.Context) error {
	return s.err
}

// staticContext implements ContextSource.
type staticContext string

func (s staticContext) ContextFor(context.Context, string) string { return string(s) }
