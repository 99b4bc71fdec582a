package todoist

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		Token:   "test-token",
		BaseURL: server.URL,
		Limiter: rate.NewLimiter(rate.Inf, 1),
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, domain.ErrTaskManagerUnavailable)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{Token: "x"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
}

func TestListTasks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "p1", r.URL.Query().Get("project_id"))
		assert.Equal(t, "today", r.URL.Query().Get("filter"))
		assert.Empty(t, r.Header.Get("X-Request-Id"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"1","content":"Write docs","priority":4,"project_id":"p1","order":1,
			 "due":{"date":"2026-01-02","string":"tomorrow"}},
			{"id":"2","content":"Ship","project_id":"p1","order":2}
		]`))
	})

	tasks, err := client.ListTasks(t.Context(), "p1", domain.TaskFilter{Filter: "today"})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Write docs", tasks[0].Content)
	assert.Equal(t, domain.Priority(4), tasks[0].Priority)
	require.NotNil(t, tasks[0].Due)
	assert.Equal(t, "tomorrow", tasks[0].Due.String)
	assert.Nil(t, tasks[1].Due)
}

func TestCreateTask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Create form", body["content"])
		assert.Equal(t, "p1", body["project_id"])
		assert.EqualValues(t, 3, body["priority"])
		_, hasDue := body["due_string"]
		assert.False(t, hasDue)

		_, _ = w.Write([]byte(`{"id":"42","content":"Create form","priority":3,"project_id":"p1"}`))
	})

	task, err := client.CreateTask(t.Context(), domain.TaskCreate{
		Content:   "Create form",
		ProjectID: "p1",
		Priority:  3,
	})
	require.NoError(t, err)
	assert.Equal(t, "42", task.ID)
}

func TestCreateTask_EmptyContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := client.CreateTask(t.Context(), domain.TaskCreate{Content: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateTask_SendsOnlySetFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/7", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"description": "more detail"}, body)
		_, _ = w.Write([]byte(`{"id":"7","content":"x","description":"more detail"}`))
	})

	desc := "more detail"
	task, err := client.UpdateTask(t.Context(), "7", domain.TaskUpdate{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "more detail", task.Description)

	_, err = client.UpdateTask(t.Context(), "7", domain.TaskUpdate{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCloseAndDeleteTask(t *testing.T) {
	var calls []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.CloseTask(t.Context(), "5"))
	require.NoError(t, client.DeleteTask(t.Context(), "5"))
	assert.Equal(t, []string{"POST /tasks/5/close", "DELETE /tasks/5"}, calls)
}

func TestProjects(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":"p1","name":"Inbox"},{"id":"p2","name":"Work"}]`))
		case http.MethodPost:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, _ = w.Write([]byte(`{"id":"p3","name":"` + body["name"] + `"}`))
		}
	})

	projects, err := client.ListProjects(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []domain.Project{{ID: "p1", Name: "Inbox"}, {ID: "p2", Name: "Work"}}, projects)

	project, err := client.CreateProject(t.Context(), "Launch")
	require.NoError(t, err)
	assert.Equal(t, "p3", project.ID)
	assert.Equal(t, "Launch", project.Name)

	_, err = client.CreateProject(t.Context(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		header    map[string]string
		wantIs    error
		transient bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, header: map[string]string{HeaderRetryAfter: "30"}, wantIs: domain.ErrRateLimited, transient: true},
		{name: "not found", status: http.StatusNotFound, wantIs: domain.ErrNotFound},
		{name: "unauthorised", status: http.StatusUnauthorized, wantIs: domain.ErrTaskManagerUnavailable},
		{name: "server error", status: http.StatusBadGateway, transient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			})

			err := client.CloseTask(t.Context(), "1")
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.Equal(t, tt.transient, domain.IsTransient(err))
		})
	}
}

func TestRateLimitError_ResetAt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderRetryAfter, "60")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.ListProjects(t.Context())
	var rlErr *domain.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.WithinDuration(t, time.Now().Add(time.Minute), rlErr.ResetAt, 5*time.Second)
}

func TestAPIError_Message(t *testing.T) {
	err := &APIError{StatusCode: 400, Body: "bad"}
	assert.Equal(t, "todoist error (status 400): bad", err.Error())
}
