package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.TaskManager = (*Client)(nil)

const (
	// DefaultBaseURL is the Todoist REST API v2 endpoint.
	DefaultBaseURL = "https://api.todoist.com/rest/v2"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// ProactiveRate is the sustained request rate (450 per 15 minutes).
	ProactiveRate = 0.5

	// Burst allows short bursts such as a breakdown publish.
	Burst = 10

	// HeaderRetryAfter is the retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"
)

// Config holds configuration for the Todoist client.
type Config struct {
	// Token is the Todoist API token (required).
	Token string

	// BaseURL is the API base URL (default: https://api.todoist.com/rest/v2).
	BaseURL string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// Limiter overrides the proactive throttle. Tests pass rate.Inf.
	Limiter *rate.Limiter
}

// Client is a Todoist REST API client.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
}

// NewClient creates a new Todoist client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: todoist token is required", domain.ErrTaskManagerUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(rate.Limit(ProactiveRate), Burst)
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		limiter: cfg.Limiter,
	}, nil
}

// apiTask is the Todoist task representation.
type apiTask struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
	ProjectID   string   `json:"project_id"`
	Order       int      `json:"order"`
	IsCompleted bool     `json:"is_completed"`
	Due         *apiDue  `json:"due"`
	Labels      []string `json:"labels"`
}

type apiDue struct {
	Date     string `json:"date"`
	String   string `json:"string"`
	Datetime string `json:"datetime"`
}

func (t apiTask) toDomain() domain.Task {
	task := domain.Task{
		ID:          t.ID,
		Content:     t.Content,
		Description: t.Description,
		Priority:    domain.Priority(t.Priority),
		ProjectID:   t.ProjectID,
		Order:       t.Order,
		IsCompleted: t.IsCompleted,
	}
	if t.Due != nil {
		task.Due = &domain.TaskDue{Date: t.Due.Date, String: t.Due.String, Datetime: t.Due.Datetime}
	}
	return task
}

// ListTasks returns active tasks, scoped to projectID when non-empty.
func (c *Client) ListTasks(ctx context.Context, projectID string, filter domain.TaskFilter) ([]domain.Task, error) {
	q := url.Values{}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	if filter.Filter != "" {
		q.Set("filter", filter.Filter)
	}
	if filter.Label != "" {
		q.Set("label", filter.Label)
	}

	var tasks []apiTask
	if err := c.do(ctx, http.MethodGet, "/tasks", q, nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	out := make([]domain.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.toDomain()
	}
	return out, nil
}

// CreateTask creates a task and returns it with its assigned ID.
func (c *Client) CreateTask(ctx context.Context, task domain.TaskCreate) (*domain.Task, error) {
	if strings.TrimSpace(task.Content) == "" {
		return nil, fmt.Errorf("%w: task content is required", domain.ErrInvalidInput)
	}

	body := map[string]any{"content": task.Content}
	if task.ProjectID != "" {
		body["project_id"] = task.ProjectID
	}
	if task.Description != "" {
		body["description"] = task.Description
	}
	if task.Priority.IsValid() {
		body["priority"] = int(task.Priority)
	}
	if task.DueString != "" {
		body["due_string"] = task.DueString
	}

	var created apiTask
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, body, &created); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	out := created.toDomain()
	return &out, nil
}

// UpdateTask applies a partial update.
func (c *Client) UpdateTask(ctx context.Context, id string, update domain.TaskUpdate) (*domain.Task, error) {
	if update.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}

	body := map[string]any{}
	if update.Content != nil {
		body["content"] = *update.Content
	}
	if update.Description != nil {
		body["description"] = *update.Description
	}
	if update.Priority != nil {
		body["priority"] = int(*update.Priority)
	}
	if update.DueString != nil {
		body["due_string"] = *update.DueString
	}

	var updated apiTask
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id), nil, body, &updated); err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	out := updated.toDomain()
	return &out, nil
}

// CloseTask marks a task complete.
func (c *Client) CloseTask(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/close", nil, nil, nil); err != nil {
		return fmt.Errorf("close task %s: %w", id, err)
	}
	return nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// ListProjects returns all projects.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, nil, &projects); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// CreateProject creates a project with the given name.
func (c *Client) CreateProject(ctx context.Context, name string) (*domain.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: project name is required", domain.ErrInvalidInput)
	}
	var project domain.Project
	if err := c.do(ctx, http.MethodPost, "/projects", nil, map[string]string{"name": name}, &project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &project, nil
}

// do performs one API request. Write requests carry an X-Request-Id so
// Todoist can deduplicate them.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("X-Request-Id", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		rlErr := &domain.RateLimitError{}
		if retryAfter := resp.Header.Get(HeaderRetryAfter); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				rlErr.ResetAt = time.Now().Add(time.Duration(seconds) * time.Second)
			}
		}
		return rlErr
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: todoist rejected the token (status %d)", domain.ErrTaskManagerUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return nil
}

// APIError is a non-success response from Todoist.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("todoist error (status %d): %s", e.StatusCode, e.Body)
}

// Temporary reports whether the failure was on Todoist's side (5xx).
func (e *APIError) Temporary() bool { return e.StatusCode >= 500 }

// Close releases resources.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
