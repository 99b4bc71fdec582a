package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestAIProvider_IsValid tests all valid and invalid providers
func TestAIProvider_IsValid(t *testing.T) {
	for _, p := range AllLLMProviders() {
		assert.True(t, p.IsValid(), p.String())
	}
	assert.False(t, AIProvider("").IsValid())
	assert.False(t, AIProvider("gigachat").IsValid())
}

// TestAIProvider_Capabilities tests the capability flags per provider
func TestAIProvider_Capabilities(t *testing.T) {
	tests := []struct {
		provider   AIProvider
		apiKey     bool
		local      bool
		tools      bool
		embeddings bool
	}{
		{AIProviderOllama, false, true, false, true},
		{AIProviderOpenAI, true, false, true, true},
		{AIProviderDeepSeek, true, false, true, false},
		{AIProviderLMStudio, false, true, true, true},
		{AIProviderAnthropic, true, false, true, false},
		{AIProviderYandex, true, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.provider.String(), func(t *testing.T) {
			assert.Equal(t, tt.apiKey, tt.provider.RequiresAPIKey())
			assert.Equal(t, tt.local, tt.provider.IsLocal())
			assert.Equal(t, tt.tools, tt.provider.SupportsTools())
			assert.Equal(t, tt.embeddings, tt.provider.SupportsEmbeddings())
			assert.NotEqual(t, unknownDescription, tt.provider.Description())
		})
	}

	assert.Equal(t, unknownDescription, AIProvider("nope").Description())
}

// TestEmbeddingSettings_IsConfigured tests embedding configuration checks
func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings EmbeddingSettings
		expected bool
	}{
		{"empty", EmbeddingSettings{}, false},
		{"ollama without key", EmbeddingSettings{Provider: AIProviderOllama, Model: "nomic-embed-text"}, true},
		{"openai without key", EmbeddingSettings{Provider: AIProviderOpenAI}, false},
		{"openai with key", EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk-test"}, true},
		{"deepseek has no embeddings", EmbeddingSettings{Provider: AIProviderDeepSeek, APIKey: "k"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.IsConfigured())
		})
	}
}

// TestLLMSettings_IsConfigured tests chat configuration checks
func TestLLMSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings LLMSettings
		expected bool
	}{
		{"empty", LLMSettings{}, false},
		{"ollama", LLMSettings{Provider: AIProviderOllama}, true},
		{"deepseek without key", LLMSettings{Provider: AIProviderDeepSeek}, false},
		{"deepseek with key", LLMSettings{Provider: AIProviderDeepSeek, APIKey: "k"}, true},
		{"yandex without folder", LLMSettings{Provider: AIProviderYandex, APIKey: "k"}, false},
		{"yandex with folder", LLMSettings{Provider: AIProviderYandex, APIKey: "k", FolderID: "b1g"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.IsConfigured())
		})
	}
}

// TestDefaultAppSettings tests the default values
func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, 5, s.RAG.TopK)
	assert.Equal(t, 500, s.RAG.ChunkSize)
	assert.Equal(t, 50, s.RAG.ChunkOverlap)
	assert.InDelta(t, 1.0, s.RAG.EmbeddingWeight+s.RAG.LexicalWeight, 0.001)
	assert.Equal(t, 2, s.RAG.MinTokenSize)
	assert.Equal(t, RAGVariantReranked, s.RAG.Variant)

	assert.Equal(t, 50, s.Executor.MaxTaskIterations)
	assert.Equal(t, 10, s.Executor.MaxToolRounds)
	assert.Equal(t, 60*time.Second, s.Executor.ToolTimeout)
	assert.Equal(t, 120*time.Second, s.Executor.CompletionTimeout)
	assert.True(t, s.Executor.CloseOnToolCap)

	assert.False(t, s.Embedding.IsConfigured())
	assert.False(t, s.LLM.IsConfigured())
	assert.False(t, s.Todoist.IsConfigured())
}

// TestDefaultModels_CoverProviders tests that every provider has a default model
func TestDefaultModels_CoverProviders(t *testing.T) {
	llm := DefaultLLMModels()
	for _, p := range AllLLMProviders() {
		assert.NotEmpty(t, llm[p], p.String())
	}

	emb := DefaultEmbeddingModels()
	dims := EmbeddingDimensions()
	for _, p := range AllEmbeddingProviders() {
		model := emb[p]
		assert.NotEmpty(t, model, p.String())
		assert.Positive(t, dims[model], model)
	}
}

// TestGitHubSettings_UsesMCP tests PR source selection
func TestGitHubSettings_UsesMCP(t *testing.T) {
	assert.False(t, GitHubSettings{Token: "t"}.UsesMCP())
	assert.True(t, GitHubSettings{MCPCommand: "github-mcp-server stdio"}.UsesMCP())
	assert.True(t, GitHubSettings{MCPURL: "http://localhost:8082/mcp"}.UsesMCP())
}
