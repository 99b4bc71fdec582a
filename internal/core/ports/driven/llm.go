package driven

import (
	"context"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// ChatProvider completes chat transcripts, optionally with tool calling.
// This is an optional service - when nil, answering, task breakdown,
// review and the execution loop are disabled.
//
// Implementations include OpenAI-compatible servers (OpenAI, DeepSeek,
// LM Studio), Ollama, Anthropic and YandexGPT. Providers without tool
// calling report SupportsTools() == false and return
// domain.ErrToolsUnsupported when a request carries tools.
type ChatProvider interface {
	// Complete sends the transcript and returns the model's next message.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// SupportsTools reports whether tool specs are honoured.
	SupportsTools() bool

	// ModelName returns the name of the chat model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", "assistant" or "tool".
	Role string

	// Content is the message text. Assistant messages that only carry
	// tool calls may leave it empty.
	Content string

	// ToolCalls are the calls requested by an assistant message.
	ToolCalls []ToolCall

	// ToolCallID links a tool message to the call it answers.
	ToolCallID string

	// Name is the tool name for tool messages.
	Name string
}

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string

	// Arguments is the JSON object text as produced by the model.
	// It is not guaranteed to be valid JSON.
	Arguments string
}

// ToolSpec describes a tool offered to the model.
type ToolSpec struct {
	Name        string
	Description string

	// Parameters is a JSON schema object.
	Parameters map[string]any
}

// CompletionRequest configures one model call.
type CompletionRequest struct {
	Messages    []ChatMessage
	Tools       []ToolSpec
	Temperature float64
	MaxTokens   int

	// JSONMode asks providers that support it for a JSON object response.
	JSONMode bool
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Message      ChatMessage
	Usage        domain.Usage
	FinishReason string
}

// HasToolCalls reports whether the model requested any tool invocation.
func (r *CompletionResponse) HasToolCalls() bool {
	return r != nil && len(r.Message.ToolCalls) > 0
}
