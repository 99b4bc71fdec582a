package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

func TestNewLLMService_Defaults(t *testing.T) {
	svc := NewLLMService(LLMConfig{})
	assert.Equal(t, DefaultBaseURL, svc.baseURL)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.False(t, svc.SupportsTools())
	assert.NoError(t, svc.Close())
}

func TestLLMService_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"ok\":true}"},
			"done":true,"done_reason":"stop","prompt_eval_count":10,"eval_count":4}`))
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL, Model: "qwen2.5"})
	resp, err := svc.Complete(context.Background(), driven.CompletionRequest{
		Messages: []driven.ChatMessage{
			{Role: driven.RoleSystem, Content: "json only"},
			{Role: driven.RoleUser, Content: "go"},
			{Role: driven.RoleTool, Name: "get_tasks", Content: "[]"},
		},
		Temperature: 0.2,
		MaxTokens:   64,
		JSONMode:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Message.Content)
	assert.Equal(t, driven.RoleAssistant, resp.Message.Role)
	assert.Equal(t, domain.Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14}, resp.Usage)
	assert.Equal(t, "stop", resp.FinishReason)

	assert.Equal(t, "qwen2.5", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, "json", got.Format)
	require.NotNil(t, got.Options)
	assert.Equal(t, 64, got.Options.NumPredict)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, driven.RoleUser, got.Messages[2].Role)
	assert.Equal(t, "Result of get_tasks: []", got.Messages[2].Content)
}

func TestLLMService_CompleteRejectsTools(t *testing.T) {
	svc := NewLLMService(LLMConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := svc.Complete(context.Background(), driven.CompletionRequest{
		Messages: []driven.ChatMessage{{Role: driven.RoleUser, Content: "hi"}},
		Tools:    []driven.ToolSpec{{Name: "read_file"}},
	})
	assert.ErrorIs(t, err, domain.ErrToolsUnsupported)
}

func TestLLMService_CompleteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
	_, err := svc.Complete(context.Background(), driven.CompletionRequest{
		Messages: []driven.ChatMessage{{Role: driven.RoleUser, Content: "hi"}},
	})
	assert.ErrorContains(t, err, "ollama error (status 404)")
	assert.NoError(t, svc.Ping(context.Background()))
}
