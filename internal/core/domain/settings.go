package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or chat.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderDeepSeek is the DeepSeek cloud API (OpenAI-compatible).
	AIProviderDeepSeek AIProvider = "deepseek"

	// AIProviderLMStudio is a local LM Studio server (OpenAI-compatible).
	AIProviderLMStudio AIProvider = "lmstudio"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderYandex is YandexGPT foundation models.
	AIProviderYandex AIProvider = "yandex"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderDeepSeek,
		AIProviderLMStudio, AIProviderAnthropic, AIProviderYandex:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOpenAI, AIProviderDeepSeek, AIProviderAnthropic, AIProviderYandex:
		return true
	default:
		return false
	}
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLMStudio
}

// SupportsTools returns true if the provider's chat API supports tool calling.
func (p AIProvider) SupportsTools() bool {
	switch p {
	case AIProviderOpenAI, AIProviderDeepSeek, AIProviderLMStudio, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// SupportsEmbeddings returns true if the provider can generate embeddings.
func (p AIProvider) SupportsEmbeddings() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderLMStudio:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderDeepSeek:
		return "DeepSeek (cloud)"
	case AIProviderLMStudio:
		return "LM Studio (local)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderYandex:
		return "YandexGPT (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (required for local providers on non-default ports).
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || !e.Provider.SupportsEmbeddings() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds chat provider configuration.
type LLMSettings struct {
	// Provider is the chat service provider.
	Provider AIProvider

	// Model is the chat model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string

	// FolderID is the Yandex Cloud folder used to build model URIs.
	FolderID string

	// Temperature is the sampling temperature for completions.
	Temperature float64

	// MaxTokens caps the completion length.
	MaxTokens int
}

// IsConfigured returns true if the chat provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	if l.Provider == AIProviderYandex && l.FolderID == "" {
		return false
	}
	return true
}

// RAGSettings configures retrieval and reranking.
type RAGSettings struct {
	// TopK is the number of candidates retrieved per query.
	TopK int

	// ChunkSize and ChunkOverlap configure the chunker, in characters.
	ChunkSize    int
	ChunkOverlap int

	// EmbeddingWeight and LexicalWeight must sum to 1.0 (±0.01).
	EmbeddingWeight float64
	LexicalWeight   float64

	// MinTokenSize drops shorter tokens from lexical matching.
	MinTokenSize int

	// MinScore is the combined-score threshold of the reranked variant.
	MinScore float64

	// RetentionRatio is the share of candidates kept by the reranked variant.
	RetentionRatio float64

	// Variant selects which comparison variant feeds answers.
	Variant RAGVariant
}

// ExecutorSettings configures the tool-calling execution loop.
type ExecutorSettings struct {
	// MaxTaskIterations caps outer-loop iterations (task fetches) per run.
	MaxTaskIterations int

	// MaxToolRounds caps model turns with tool calls per task.
	MaxToolRounds int

	// ToolTimeout bounds one tool invocation.
	ToolTimeout time.Duration

	// CompletionTimeout bounds one model call.
	CompletionTimeout time.Duration

	// UseRAG enables retrieval of supporting context per task.
	UseRAG bool

	// CloseOnToolCap closes a task even when its tool-round cap was reached.
	CloseOnToolCap bool
}

// TodoistSettings holds task-manager credentials.
type TodoistSettings struct {
	Token   string
	BaseURL string
}

// IsConfigured returns true if a token is present.
func (t TodoistSettings) IsConfigured() bool {
	return t.Token != ""
}

// GitHubSettings configures pull-request access.
type GitHubSettings struct {
	// Token is a GitHub personal access token.
	Token string

	// MCPCommand launches a GitHub MCP server over stdio, e.g.
	// "github-mcp-server stdio". When empty the REST API is used.
	MCPCommand string

	// MCPURL connects to a streamable-HTTP GitHub MCP server instead.
	MCPURL string
}

// UsesMCP reports whether pull requests are fetched through MCP.
func (g GitHubSettings) UsesMCP() bool {
	return g.MCPCommand != "" || g.MCPURL != ""
}

// PathSettings holds filesystem locations.
type PathSettings struct {
	// IndexFile is the persisted embedding index (JSON).
	IndexFile string

	// ProjectMapFile is the persisted project name -> external ID map (JSON).
	ProjectMapFile string

	// ProjectRoot is the directory the project tools are sandboxed to.
	ProjectRoot string

	// KnowledgeBase is the directory indexed into the embedding index.
	KnowledgeBase string

	// DataDir holds the run-history database.
	DataDir string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	RAG       RAGSettings
	Executor  ExecutorSettings
	Todoist   TodoistSettings
	GitHub    GitHubSettings
	Paths     PathSettings
}

// DefaultRAGSettings returns the retrieval defaults.
func DefaultRAGSettings() RAGSettings {
	return RAGSettings{
		TopK:            5,
		ChunkSize:       500,
		ChunkOverlap:    50,
		EmbeddingWeight: 0.65,
		LexicalWeight:   0.35,
		MinTokenSize:    2,
		MinScore:        0.35,
		RetentionRatio:  0.6,
		Variant:         RAGVariantReranked,
	}
}

// DefaultExecutorSettings returns the execution loop defaults.
func DefaultExecutorSettings() ExecutorSettings {
	return ExecutorSettings{
		MaxTaskIterations: 50,
		MaxToolRounds:     10,
		ToolTimeout:       60 * time.Second,
		CompletionTimeout: 120 * time.Second,
		UseRAG:            true,
		CloseOnToolCap:    true,
	}
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers and credentials are left unconfigured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{},
		LLM: LLMSettings{
			Temperature: 0.3,
			MaxTokens:   4000,
		},
		RAG:      DefaultRAGSettings(),
		Executor: DefaultExecutorSettings(),
		Todoist:  TodoistSettings{},
		GitHub:   GitHubSettings{},
		Paths:    PathSettings{},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderLMStudio,
	}
}

// AllLLMProviders returns providers that support chat completion.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderDeepSeek,
		AIProviderLMStudio,
		AIProviderAnthropic,
		AIProviderYandex,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:   "nomic-embed-text",
		AIProviderOpenAI:   "text-embedding-3-small",
		AIProviderLMStudio: "text-embedding-nomic-embed-text-v1.5",
	}
}

// DefaultLLMModels returns default models for each chat provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderDeepSeek:  "deepseek-chat",
		AIProviderLMStudio:  "qwen2.5-7b-instruct",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderYandex:    "yandexgpt-lite",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":                     768,
		"text-embedding-nomic-embed-text-v1.5": 768,
		"mxbai-embed-large":                    1024,
		"all-minilm":                           384,
		"text-embedding-3-small":               1536,
		"text-embedding-3-large":               3072,
		"text-embedding-ada-002":               1536,
	}
}
