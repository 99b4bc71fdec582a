package services

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyLLMFolderID      = "llm.folder_id"
	keyLLMTemperature   = "llm.temperature"
	keyLLMMaxTokens     = "llm.max_tokens"
	keyRAGTopK          = "rag.top_k"
	keyRAGChunkSize     = "rag.chunk_size"
	keyRAGChunkOverlap  = "rag.chunk_overlap"
	keyRAGEmbedWeight   = "rag.embedding_weight"
	keyRAGLexicalWeight = "rag.lexical_weight"
	keyRAGMinTokenSize  = "rag.min_token_size"
	keyRAGMinScore      = "rag.min_score"
	keyRAGRetention     = "rag.retention_ratio"
	keyRAGVariant       = "rag.variant"
	keyExecMaxTasks     = "executor.max_task_iterations"
	keyExecMaxRounds    = "executor.max_tool_rounds"
	keyExecToolTimeout  = "executor.tool_timeout"
	keyExecCallTimeout  = "executor.completion_timeout"
	keyExecUseRAG       = "executor.use_rag"
	keyExecCloseOnCap   = "executor.close_on_tool_cap"
	keyTodoistToken     = "todoist.token"
	keyTodoistBaseURL   = "todoist.base_url"
	keyGitHubToken      = "github.token"
	keyGitHubMCPCommand = "github.mcp_command"
	keyGitHubMCPURL     = "github.mcp_url"
	keyPathIndex        = "paths.index_file"
	keyPathProjectMap   = "paths.project_map_file"
	keyPathProjectRoot  = "paths.project_root"
	keyPathKnowledge    = "paths.knowledge_base"
	keyPathDataDir      = "paths.data_dir"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
	kindSecret
)

// settingKeys lists every settable key in display order.
var settingKeys = []struct {
	key  string
	kind valueKind
}{
	{keyEmbedProvider, kindString},
	{keyEmbedModel, kindString},
	{keyEmbedBaseURL, kindString},
	{keyEmbedAPIKey, kindSecret},
	{keyLLMProvider, kindString},
	{keyLLMModel, kindString},
	{keyLLMBaseURL, kindString},
	{keyLLMAPIKey, kindSecret},
	{keyLLMFolderID, kindString},
	{keyLLMTemperature, kindFloat},
	{keyLLMMaxTokens, kindInt},
	{keyRAGTopK, kindInt},
	{keyRAGChunkSize, kindInt},
	{keyRAGChunkOverlap, kindInt},
	{keyRAGEmbedWeight, kindFloat},
	{keyRAGLexicalWeight, kindFloat},
	{keyRAGMinTokenSize, kindInt},
	{keyRAGMinScore, kindFloat},
	{keyRAGRetention, kindFloat},
	{keyRAGVariant, kindString},
	{keyExecMaxTasks, kindInt},
	{keyExecMaxRounds, kindInt},
	{keyExecToolTimeout, kindDuration},
	{keyExecCallTimeout, kindDuration},
	{keyExecUseRAG, kindBool},
	{keyExecCloseOnCap, kindBool},
	{keyTodoistToken, kindSecret},
	{keyTodoistBaseURL, kindString},
	{keyGitHubToken, kindSecret},
	{keyGitHubMCPCommand, kindString},
	{keyGitHubMCPURL, kindString},
	{keyPathIndex, kindString},
	{keyPathProjectMap, kindString},
	{keyPathProjectRoot, kindString},
	{keyPathKnowledge, kindString},
	{keyPathDataDir, kindString},
}

// providerKeyEnv names the environment variable holding each provider's API key.
var providerKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderDeepSeek:  "DEEPSEEK_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
	domain.AIProviderYandex:    "YANDEX_API_KEY",
}

// SettingsService manages application settings.
// Secrets missing from the config file are read from the environment
// (OPENAI_API_KEY, DEEPSEEK_API_KEY, ANTHROPIC_API_KEY, YANDEX_API_KEY,
// YANDEX_FOLDER_ID, TODOIST_TOKEN, GITHUB_TOKEN).
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:       s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL),
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
			FolderID:    s.getString(keyLLMFolderID, s.getenv("YANDEX_FOLDER_ID")),
			Temperature: s.getFloat(keyLLMTemperature, d.LLM.Temperature),
			MaxTokens:   s.getInt(keyLLMMaxTokens, d.LLM.MaxTokens),
		},
		RAG: domain.RAGSettings{
			TopK:            s.getInt(keyRAGTopK, d.RAG.TopK),
			ChunkSize:       s.getInt(keyRAGChunkSize, d.RAG.ChunkSize),
			ChunkOverlap:    s.getInt(keyRAGChunkOverlap, d.RAG.ChunkOverlap),
			EmbeddingWeight: s.getFloat(keyRAGEmbedWeight, d.RAG.EmbeddingWeight),
			LexicalWeight:   s.getFloat(keyRAGLexicalWeight, d.RAG.LexicalWeight),
			MinTokenSize:    s.getInt(keyRAGMinTokenSize, d.RAG.MinTokenSize),
			MinScore:        s.getFloat(keyRAGMinScore, d.RAG.MinScore),
			RetentionRatio:  s.getFloat(keyRAGRetention, d.RAG.RetentionRatio),
			Variant:         s.getVariant(d.RAG.Variant),
		},
		Executor: domain.ExecutorSettings{
			MaxTaskIterations: s.getInt(keyExecMaxTasks, d.Executor.MaxTaskIterations),
			MaxToolRounds:     s.getInt(keyExecMaxRounds, d.Executor.MaxToolRounds),
			ToolTimeout:       s.getDuration(keyExecToolTimeout, d.Executor.ToolTimeout),
			CompletionTimeout: s.getDuration(keyExecCallTimeout, d.Executor.CompletionTimeout),
			UseRAG:            s.getBool(keyExecUseRAG, d.Executor.UseRAG),
			CloseOnToolCap:    s.getBool(keyExecCloseOnCap, d.Executor.CloseOnToolCap),
		},
		Todoist: domain.TodoistSettings{
			Token:   s.getString(keyTodoistToken, s.getenv("TODOIST_TOKEN")),
			BaseURL: s.configStore.GetString(keyTodoistBaseURL),
		},
		GitHub: domain.GitHubSettings{
			Token:      s.getString(keyGitHubToken, s.getenv("GITHUB_TOKEN")),
			MCPCommand: s.configStore.GetString(keyGitHubMCPCommand),
			MCPURL:     s.configStore.GetString(keyGitHubMCPURL),
		},
		Paths: domain.PathSettings{
			IndexFile:      s.configStore.GetString(keyPathIndex),
			ProjectMapFile: s.configStore.GetString(keyPathProjectMap),
			ProjectRoot:    s.configStore.GetString(keyPathProjectRoot),
			KnowledgeBase:  s.configStore.GetString(keyPathKnowledge),
			DataDir:        s.configStore.GetString(keyPathDataDir),
		},
	}

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.envKey(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.envKey(settings.LLM.Provider)
	}

	return settings, nil
}

// Save persists application settings. Empty secrets are not written so
// that environment-provided keys never end up in the config file.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key    string
		value  any
		secret bool
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String(), false},
		{keyEmbedModel, settings.Embedding.Model, false},
		{keyEmbedBaseURL, settings.Embedding.BaseURL, false},
		{keyEmbedAPIKey, settings.Embedding.APIKey, true},
		{keyLLMProvider, settings.LLM.Provider.String(), false},
		{keyLLMModel, settings.LLM.Model, false},
		{keyLLMBaseURL, settings.LLM.BaseURL, false},
		{keyLLMAPIKey, settings.LLM.APIKey, true},
		{keyLLMFolderID, settings.LLM.FolderID, false},
		{keyLLMTemperature, settings.LLM.Temperature, false},
		{keyLLMMaxTokens, settings.LLM.MaxTokens, false},
		{keyRAGTopK, settings.RAG.TopK, false},
		{keyRAGChunkSize, settings.RAG.ChunkSize, false},
		{keyRAGChunkOverlap, settings.RAG.ChunkOverlap, false},
		{keyRAGEmbedWeight, settings.RAG.EmbeddingWeight, false},
		{keyRAGLexicalWeight, settings.RAG.LexicalWeight, false},
		{keyRAGMinTokenSize, settings.RAG.MinTokenSize, false},
		{keyRAGMinScore, settings.RAG.MinScore, false},
		{keyRAGRetention, settings.RAG.RetentionRatio, false},
		{keyRAGVariant, settings.RAG.Variant.String(), false},
		{keyExecMaxTasks, settings.Executor.MaxTaskIterations, false},
		{keyExecMaxRounds, settings.Executor.MaxToolRounds, false},
		{keyExecToolTimeout, settings.Executor.ToolTimeout.String(), false},
		{keyExecCallTimeout, settings.Executor.CompletionTimeout.String(), false},
		{keyExecUseRAG, settings.Executor.UseRAG, false},
		{keyExecCloseOnCap, settings.Executor.CloseOnToolCap, false},
		{keyTodoistToken, settings.Todoist.Token, true},
		{keyTodoistBaseURL, settings.Todoist.BaseURL, false},
		{keyGitHubToken, settings.GitHub.Token, true},
		{keyGitHubMCPCommand, settings.GitHub.MCPCommand, false},
		{keyGitHubMCPURL, settings.GitHub.MCPURL, false},
		{keyPathIndex, settings.Paths.IndexFile, false},
		{keyPathProjectMap, settings.Paths.ProjectMapFile, false},
		{keyPathProjectRoot, settings.Paths.ProjectRoot, false},
		{keyPathKnowledge, settings.Paths.KnowledgeBase, false},
		{keyPathDataDir, settings.Paths.DataDir, false},
	}

	envSecrets := map[string]string{
		keyEmbedAPIKey:  s.envKey(settings.Embedding.Provider),
		keyLLMAPIKey:    s.envKey(settings.LLM.Provider),
		keyTodoistToken: s.getenv("TODOIST_TOKEN"),
		keyGitHubToken:  s.getenv("GITHUB_TOKEN"),
	}

	for _, v := range values {
		if v.secret && (v.value == "" || v.value == envSecrets[v.key]) {
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// Keys returns every settable key in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingKeys))
	for i, k := range settingKeys {
		keys[i] = k.key
	}
	return keys
}

// IsSecret reports whether key holds a credential that should be masked.
func (s *SettingsService) IsSecret(key string) bool {
	for _, k := range settingKeys {
		if k.key == key {
			return k.kind == kindSecret
		}
	}
	return false
}

// Set parses value according to the key's type and stores it.
func (s *SettingsService) Set(key, value string) error {
	for _, k := range settingKeys {
		if k.key != key {
			continue
		}
		parsed, err := parseSetting(k.kind, value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
		}
		if err := s.validateValue(key, parsed); err != nil {
			return err
		}
		return s.configStore.Set(key, parsed)
	}
	return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !provider.SupportsEmbeddings() {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.envKey(provider) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = model
	if model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}
	settings.Embedding.BaseURL = ""
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.envKey(provider) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = model
	if model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}
	settings.LLM.BaseURL = ""
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks the current settings are internally consistent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if _, err := NewReranker(RerankConfig{
		EmbeddingWeight: settings.RAG.EmbeddingWeight,
		LexicalWeight:   settings.RAG.LexicalWeight,
		MinTokenSize:    settings.RAG.MinTokenSize,
	}); err != nil {
		return err
	}
	if settings.RAG.ChunkOverlap >= settings.RAG.ChunkSize {
		return fmt.Errorf("%w: rag.chunk_overlap (%d) must be smaller than rag.chunk_size (%d)",
			domain.ErrInvalidInput, settings.RAG.ChunkOverlap, settings.RAG.ChunkSize)
	}
	if settings.RAG.RetentionRatio <= 0 || settings.RAG.RetentionRatio > 1 {
		return fmt.Errorf("%w: rag.retention_ratio must be in (0, 1]", domain.ErrInvalidInput)
	}
	if settings.LLM.Provider != "" && !settings.LLM.IsConfigured() {
		return fmt.Errorf("LLM provider %q is not fully configured", settings.LLM.Provider.Description())
	}
	if settings.Embedding.Provider != "" && !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %q is not fully configured", settings.Embedding.Provider.Description())
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

func (s *SettingsService) validateValue(key string, value any) error {
	switch key {
	case keyEmbedProvider, keyLLMProvider:
		if p := domain.AIProvider(value.(string)); p != "" && !p.IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, p)
		}
	case keyRAGVariant:
		if v := domain.RAGVariant(value.(string)); !v.IsValid() {
			return fmt.Errorf("%w: variant must be baseline or reranked", domain.ErrInvalidInput)
		}
	case keyRAGEmbedWeight, keyRAGLexicalWeight, keyRAGMinScore, keyRAGRetention:
		if f := value.(float64); f < 0 || f > 1 {
			return fmt.Errorf("%w: %s must be between 0 and 1", domain.ErrInvalidInput, key)
		}
	}
	return nil
}

func parseSetting(kind valueKind, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("must not be negative")
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) {
			return nil, fmt.Errorf("not a number: %q", value)
		}
		return f, nil
	case kindBool:
		return strconv.ParseBool(value)
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) envKey(p domain.AIProvider) string {
	if name, ok := providerKeyEnv[p]; ok {
		return s.getenv(name)
	}
	return ""
}

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if d := s.configStore.GetDuration(key); d > 0 {
		return d
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getVariant(defaultVal domain.RAGVariant) domain.RAGVariant {
	v := domain.RAGVariant(s.configStore.GetString(keyRAGVariant))
	if !v.IsValid() {
		return defaultVal
	}
	return v
}
