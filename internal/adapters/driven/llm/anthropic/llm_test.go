package anthropic

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

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(Config{})
	assert.Error(t, err)

	svc, err := NewLLMService(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.True(t, svc.SupportsTools())
}

func TestToWireMessages(t *testing.T) {
	system, msgs := toWireMessages([]driven.ChatMessage{
		{Role: driven.RoleSystem, Content: "rules"},
		{Role: driven.RoleUser, Content: "do the task"},
		{Role: driven.RoleAssistant, ToolCalls: []driven.ToolCall{
			{ID: "tu_1", Name: "read_file", Arguments: `{"path":"a"}`},
			{ID: "tu_2", Name: "list_files", Arguments: `not json`},
		}},
		{Role: driven.RoleTool, ToolCallID: "tu_1", Content: "content"},
		{Role: driven.RoleTool, ToolCallID: "tu_2", Content: "[]"},
	})

	assert.Equal(t, "rules", system)
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
	require.Len(t, msgs[1].Content, 2)
	assert.JSONEq(t, `{"path":"a"}`, string(msgs[1].Content[0].Input))
	assert.JSONEq(t, `{}`, string(msgs[1].Content[1].Input))

	// Consecutive tool results share one user turn.
	assert.Equal(t, "user", msgs[2].Role)
	require.Len(t, msgs[2].Content, 2)
	assert.Equal(t, "tool_result", msgs[2].Content[0].Type)
	assert.Equal(t, "tu_1", msgs[2].Content[0].ToolUseID)
	assert.Equal(t, "tu_2", msgs[2].Content[1].ToolUseID)
}

func TestLLMService_Complete(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[
			{"type":"text","text":"Reading the file."},
			{"type":"tool_use","id":"toolu_1","name":"read_file","input":{"path":"main.go"}}
		],"stop_reason":"tool_use","usage":{"input_tokens":20,"output_tokens":5}}`))
	}))
	defer srv.Close()

	svc, err := NewLLMService(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := svc.Complete(context.Background(), driven.CompletionRequest{
		Messages: []driven.ChatMessage{{Role: driven.RoleSystem, Content: "sys"}, {Role: driven.RoleUser, Content: "go"}},
		Tools:    []driven.ToolSpec{{Name: "read_file", Description: "Read a file"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Reading the file.", resp.Message.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.Message.ToolCalls[0].ID)
	assert.JSONEq(t, `{"path":"main.go"}`, resp.Message.ToolCalls[0].Arguments)
	assert.Equal(t, 25, resp.Usage.TotalTokens)
	assert.Equal(t, "tool_use", resp.FinishReason)

	assert.Equal(t, "sys", got.System)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, map[string]any{"type": "object"}, got.Tools[0].InputSchema)
}

func TestLLMService_CompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{name: "api error", status: http.StatusBadRequest, body: `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, wantMsg: "anthropic error: bad"},
		{name: "plain failure", status: http.StatusBadGateway, body: `upstream`, wantMsg: "status 502"},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, wantErr: domain.ErrRateLimited},
		{name: "empty", status: http.StatusOK, body: `{"content":[]}`, wantErr: domain.ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			svc, err := NewLLMService(Config{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)
			_, err = svc.Complete(context.Background(), driven.CompletionRequest{
				Messages: []driven.ChatMessage{{Role: driven.RoleUser, Content: "hi"}},
			})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.ErrorContains(t, err, tt.wantMsg)
			}
		})
	}
}
