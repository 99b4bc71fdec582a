// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/taskrag/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/taskrag/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/taskrag/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/taskrag/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/taskrag/internal/adapters/driven/llm/openai"
	yandexllm "github.com/custodia-labs/taskrag/internal/adapters/driven/llm/yandex"
	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// LM Studio serves embeddings and chat from the same local endpoint.
const lmStudioBaseURL = openaillm.LMStudioBaseURL

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	ChatProvider     driven.ChatProvider
	Warnings         []string // Non-fatal issues that disabled a service.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.ChatProvider != nil {
		r.ChatProvider.Close()
	}
}

// Initialise creates both AI services. A service that cannot be created
// or reached is left nil and reported in Warnings, so commands that do
// not need it keep working.
func Initialise(settings *domain.AppSettings) *InitResult {
	result := &InitResult{}

	embedding, err := CreateAndValidateEmbeddingService(&settings.Embedding)
	if err != nil {
		logger.Warn("embedding disabled: %v", err)
		result.Warnings = append(result.Warnings, err.Error())
	}
	result.EmbeddingService = embedding

	chat, err := CreateAndValidateChatProvider(&settings.LLM)
	if err != nil {
		logger.Warn("chat provider disabled: %v", err)
		result.Warnings = append(result.Warnings, err.Error())
	}
	result.ChatProvider = chat

	return result
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'taskrag settings set embedding.provider ...' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// CreateAndValidateChatProvider creates a chat provider and validates connectivity.
// Returns the provider if successful, or an error with guidance.
func CreateAndValidateChatProvider(settings *domain.LLMSettings) (driven.ChatProvider, error) {
	svc, err := CreateChatProvider(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'taskrag settings set llm.provider ...' to fix",
			domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates a chat configuration by creating a provider and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	svc, err := CreateChatProvider(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}
	if !settings.Provider.SupportsEmbeddings() {
		return nil, fmt.Errorf("%s does not support embeddings, use ollama, openai or lmstudio", settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%s requires an API key", settings.Provider)
	}

	model := settings.Model
	if model == "" {
		model = domain.DefaultEmbeddingModels()[settings.Provider]
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   model,
		}), nil

	case domain.AIProviderOpenAI, domain.AIProviderLMStudio:
		cfg := openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   model,
		}
		if settings.Provider == domain.AIProviderLMStudio {
			cfg.AllowNoAPIKey = true
			if cfg.BaseURL == "" {
				cfg.BaseURL = lmStudioBaseURL
			}
		}
		svc, err := openaiembed.NewEmbeddingService(cfg)
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateChatProvider creates the appropriate chat provider based on settings.
// Returns nil if the provider is not configured.
func CreateChatProvider(settings *domain.LLMSettings) (driven.ChatProvider, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}
	if !settings.Provider.IsValid() {
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%s is missing credentials", settings.Provider)
	}

	model := settings.Model
	if model == "" {
		model = domain.DefaultLLMModels()[settings.Provider]
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   model,
		}), nil

	case domain.AIProviderOpenAI, domain.AIProviderDeepSeek, domain.AIProviderLMStudio:
		cfg := openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   model,
		}
		switch settings.Provider {
		case domain.AIProviderDeepSeek:
			if cfg.BaseURL == "" {
				cfg.BaseURL = openaillm.DeepSeekBaseURL
			}
		case domain.AIProviderLMStudio:
			cfg.AllowNoAPIKey = true
			if cfg.BaseURL == "" {
				cfg.BaseURL = lmStudioBaseURL
			}
		}
		svc, err := openaillm.NewLLMService(cfg)
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderYandex:
		svc, err := yandexllm.NewLLMService(yandexllm.Config{
			APIKey:   settings.APIKey,
			FolderID: settings.FolderID,
			BaseURL:  settings.BaseURL,
			Model:    model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}
