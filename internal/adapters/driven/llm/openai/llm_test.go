package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc, cfg LLMConfig) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	svc, err := NewLLMService(cfg)
	require.NoError(t, err)
	return svc
}

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.Error(t, err)

	svc, err := NewLLMService(LLMConfig{AllowNoAPIKey: true, BaseURL: LMStudioBaseURL})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.True(t, svc.SupportsTools())
	assert.NoError(t, svc.Close())
}

func TestLLMService_CompleteText(t *testing.T) {
	var got map[string]any
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}}`))
	}, LLMConfig{Model: "deepseek-chat"})

	resp, err := svc.Complete(context.Background(), driven.CompletionRequest{
		Messages:    []driven.ChatMessage{{Role: driven.RoleSystem, Content: "be brief"}, {Role: driven.RoleUser, Content: "hi"}},
		Temperature: 0.3,
		MaxTokens:   100,
		JSONMode:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Message.Content)
	assert.Equal(t, driven.RoleAssistant, resp.Message.Role)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 9, resp.Usage.TotalTokens)
	assert.False(t, resp.HasToolCalls())

	assert.Equal(t, "deepseek-chat", got["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	assert.Len(t, got["messages"], 2)
	assert.NotContains(t, got, "tools")
}

func TestLLMService_CompleteToolCalls(t *testing.T) {
	var got chatCompletionRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"read_file","arguments":"{\"path\":\"a.go\"}"}},
			{"type":"function","function":{"name":"list_files","arguments":"{}"}}
		]},"finish_reason":"tool_calls"}]}`))
	}, LLMConfig{})

	resp, err := svc.Complete(context.Background(), driven.CompletionRequest{
		Messages: []driven.ChatMessage{
			{Role: driven.RoleUser, Content: "do it"},
			{Role: driven.RoleAssistant, ToolCalls: []driven.ToolCall{{ID: "c0", Name: "get_tasks", Arguments: "{}"}}},
			{Role: driven.RoleTool, ToolCallID: "c0", Name: "get_tasks", Content: "[]"},
		},
		Tools: []driven.ToolSpec{{Name: "read_file", Description: "Read a file", Parameters: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Message.ToolCalls, 2)
	assert.Equal(t, "call_1", resp.Message.ToolCalls[0].ID)
	assert.Equal(t, "read_file", resp.Message.ToolCalls[0].Name)
	assert.JSONEq(t, `{"path":"a.go"}`, resp.Message.ToolCalls[0].Arguments)
	assert.True(t, strings.HasPrefix(resp.Message.ToolCalls[1].ID, "call_"))
	assert.Empty(t, resp.Message.Content)

	require.Len(t, got.Tools, 1)
	assert.Equal(t, "function", got.Tools[0].Type)
	assert.Equal(t, "read_file", got.Tools[0].Function.Name)
	require.Len(t, got.Messages, 3)
	assert.Nil(t, got.Messages[1].Content)
	assert.Equal(t, "c0", got.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, "c0", got.Messages[2].ToolCallID)
	assert.Equal(t, "get_tasks", got.Messages[2].Name)
}

func TestLLMService_CompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantMsg: "status 500"},
		{name: "rate limited", status: http.StatusTooManyRequests, body: "slow down", wantErr: domain.ErrRateLimited},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantErr: domain.ErrEmptyResponse},
		{name: "api error", status: http.StatusOK, body: `{"error":{"message":"bad model"}}`, wantMsg: "bad model"},
		{name: "bad json", status: http.StatusOK, body: `not json`, wantMsg: "decode response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, LLMConfig{})

			_, err := svc.Complete(context.Background(), driven.CompletionRequest{
				Messages: []driven.ChatMessage{{Role: driven.RoleUser, Content: "hi"}},
			})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			if tt.wantMsg != "" {
				assert.ErrorContains(t, err, tt.wantMsg)
			}
		})
	}
}

func TestLLMService_ToolsDisabled(t *testing.T) {
	svc, err := NewLLMService(LLMConfig{APIKey: "k", DisableTools: true})
	require.NoError(t, err)
	assert.False(t, svc.SupportsTools())

	_, err = svc.Complete(context.Background(), driven.CompletionRequest{
		Tools: []driven.ToolSpec{{Name: "read_file"}},
	})
	assert.ErrorIs(t, err, domain.ErrToolsUnsupported)
}

func TestLLMService_Ping(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}, LLMConfig{})
	assert.NoError(t, svc.Ping(context.Background()))

	failing := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}, LLMConfig{})
	assert.ErrorContains(t, failing.Ping(context.Background()), "status 401")
}
