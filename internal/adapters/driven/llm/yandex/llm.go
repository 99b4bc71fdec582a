// Package yandex provides a chat provider using YandexGPT foundation models.
package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.ChatProvider = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "https://llm.api.cloud.yandex.net/foundationModels/v1"
	DefaultModel     = "yandexgpt-lite"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 2000
)

// Config holds configuration for the YandexGPT service.
type Config struct {
	// APIKey is a Yandex Cloud API key (required).
	APIKey string

	// FolderID is the cloud folder the model URI is built from (required).
	FolderID string

	// BaseURL is the API base URL.
	BaseURL string

	// Model is the model name, e.g. yandexgpt or yandexgpt-lite.
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// LLMService completes chats using YandexGPT. Tool calling is not offered.
type LLMService struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	folderID string
	model    string
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   string  `json:"maxTokens"`
}

type message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// completionRequest is the /completion request format.
type completionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []message         `json:"messages"`
}

// completionResponse is the /completion response format.
// Token counts are int64 values encoded as strings.
type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message message `json:"message"`
			Status  string  `json:"status"`
		} `json:"alternatives"`
		Usage struct {
			InputTextTokens  string `json:"inputTextTokens"`
			CompletionTokens string `json:"completionTokens"`
			TotalTokens      string `json:"totalTokens"`
		} `json:"usage"`
	} `json:"result"`
}

// NewLLMService creates a new YandexGPT service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("yandex: API key is required")
	}
	if cfg.FolderID == "" {
		return nil, fmt.Errorf("yandex: folder ID is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &LLMService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		folderID: cfg.FolderID,
		model:    cfg.Model,
	}, nil
}

// ModelURI returns gpt://<folder>/<model>/latest.
func (s *LLMService) ModelURI() string {
	return fmt.Sprintf("gpt://%s/%s/latest", s.folderID, s.model)
}

// Complete sends the transcript to /completion.
func (s *LLMService) Complete(ctx context.Context, req driven.CompletionRequest) (*driven.CompletionResponse, error) {
	if len(req.Tools) > 0 {
		return nil, domain.ErrToolsUnsupported
	}

	messages := make([]message, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		role, text := m.Role, m.Content
		if role == driven.RoleTool {
			role = driven.RoleUser
			text = fmt.Sprintf("Result of %s: %s", m.Name, m.Content)
		}
		messages = append(messages, message{Role: role, Text: text})
	}
	if req.JSONMode {
		messages = append([]message{{Role: driven.RoleSystem, Text: "Respond with a single JSON object and nothing else."}}, messages...)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	var out completionResponse
	if err := s.post(ctx, "/completion", completionRequest{
		ModelURI: s.ModelURI(),
		CompletionOptions: completionOptions{
			Temperature: req.Temperature,
			MaxTokens:   strconv.Itoa(maxTokens),
		},
		Messages: messages,
	}, &out); err != nil {
		return nil, err
	}

	if len(out.Result.Alternatives) == 0 {
		return nil, fmt.Errorf("yandex: %w: no alternatives returned", domain.ErrEmptyResponse)
	}
	alt := out.Result.Alternatives[0]
	usage := out.Result.Usage

	return &driven.CompletionResponse{
		Message: driven.ChatMessage{
			Role:    driven.RoleAssistant,
			Content: alt.Message.Text,
		},
		Usage: domain.Usage{
			PromptTokens:     atoi(usage.InputTextTokens),
			CompletionTokens: atoi(usage.CompletionTokens),
			TotalTokens:      atoi(usage.TotalTokens),
		},
		FinishReason: alt.Status,
	}, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// SupportsTools always returns false for YandexGPT.
func (s *LLMService) SupportsTools() bool {
	return false
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates credentials with the tokenize endpoint, which runs no inference.
func (s *LLMService) Ping(ctx context.Context) error {
	body := map[string]string{"modelUri": s.ModelURI(), "text": "ping"}
	return s.post(ctx, "/tokenize", body, nil)
}

// Close releases resources.
func (s *LLMService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

func (s *LLMService) post(ctx context.Context, path string, in, out any) error {
	jsonBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+s.apiKey)
	req.Header.Set("x-folder-id", s.folderID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &domain.RateLimitError{}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yandex error (status %d): %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
