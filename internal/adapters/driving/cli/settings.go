package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, retrieval, the execution loop,
credentials and paths.

Use subcommands to change single values or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Set a single setting",
	Long: `Set a single setting by its dotted key, e.g. "rag.top_k 8".

Secrets such as llm.api_key are prompted for without echo when the value
is omitted. Run 'taskrag settings keys' for the full list.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable keys",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		if settingsService == nil {
			return
		}
		for _, k := range settingsService.Keys() {
			cmd.Println(k)
		}
	},
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure the AI providers and Todoist.`,
	RunE:  runSettingsWizard,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used for indexing and retrieval.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the chat provider used for answers, breakdown, runs and reviews.`,
	RunE:  runSettingsLLM,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(title("Current Settings"))
	cmd.Println()

	cmd.Println(headingStyle.Render("[Embedding]"))
	cmd.Println(keyValue("Provider", settings.Embedding.Provider.Description()))
	cmd.Println(keyValue("Model", valueOrDefault(settings.Embedding.Model)))
	if settings.Embedding.BaseURL != "" {
		cmd.Println(keyValue("Base URL", settings.Embedding.BaseURL))
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Println(keyValue("API Key", secretValue(settings.Embedding.APIKey)))
	}
	cmd.Println(keyValue("Status", status(settings.Embedding.IsConfigured())))
	cmd.Println()

	cmd.Println(headingStyle.Render("[LLM]"))
	cmd.Println(keyValue("Provider", settings.LLM.Provider.Description()))
	cmd.Println(keyValue("Model", valueOrDefault(settings.LLM.Model)))
	if settings.LLM.BaseURL != "" {
		cmd.Println(keyValue("Base URL", settings.LLM.BaseURL))
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		cmd.Println(keyValue("API Key", secretValue(settings.LLM.APIKey)))
	}
	if settings.LLM.Provider == domain.AIProviderYandex {
		cmd.Println(keyValue("Folder ID", valueOrDefault(settings.LLM.FolderID)))
	}
	cmd.Println(keyValue("Temperature", settings.LLM.Temperature))
	cmd.Println(keyValue("Max tokens", settings.LLM.MaxTokens))
	cmd.Println(keyValue("Status", status(settings.LLM.IsConfigured())))
	cmd.Println()

	cmd.Println(headingStyle.Render("[RAG]"))
	cmd.Println(keyValue("Top K", settings.RAG.TopK))
	cmd.Println(keyValue("Chunk size", fmt.Sprintf("%d (overlap %d)", settings.RAG.ChunkSize, settings.RAG.ChunkOverlap)))
	cmd.Println(keyValue("Weights", fmt.Sprintf("embedding %.2f, lexical %.2f", settings.RAG.EmbeddingWeight, settings.RAG.LexicalWeight)))
	cmd.Println(keyValue("Min score", settings.RAG.MinScore))
	cmd.Println(keyValue("Retention", settings.RAG.RetentionRatio))
	cmd.Println(keyValue("Variant", settings.RAG.Variant))
	cmd.Println()

	cmd.Println(headingStyle.Render("[Executor]"))
	cmd.Println(keyValue("Max iterations", settings.Executor.MaxTaskIterations))
	cmd.Println(keyValue("Max tool rounds", settings.Executor.MaxToolRounds))
	cmd.Println(keyValue("Tool timeout", settings.Executor.ToolTimeout))
	cmd.Println(keyValue("Model timeout", settings.Executor.CompletionTimeout))
	cmd.Println(keyValue("Use RAG", settings.Executor.UseRAG))
	cmd.Println(keyValue("Close on cap", settings.Executor.CloseOnToolCap))
	cmd.Println()

	cmd.Println(headingStyle.Render("[Todoist]"))
	cmd.Println(keyValue("Token", secretValue(settings.Todoist.Token)))
	cmd.Println()

	cmd.Println(headingStyle.Render("[GitHub]"))
	cmd.Println(keyValue("Token", secretValue(settings.GitHub.Token)))
	switch {
	case settings.GitHub.MCPURL != "":
		cmd.Println(keyValue("Source", "MCP "+settings.GitHub.MCPURL))
	case settings.GitHub.MCPCommand != "":
		cmd.Println(keyValue("Source", "MCP "+settings.GitHub.MCPCommand))
	default:
		cmd.Println(keyValue("Source", "REST API"))
	}
	cmd.Println()

	cmd.Println(headingStyle.Render("[Paths]"))
	cmd.Println(keyValue("Knowledge base", valueOrDefault(settings.Paths.KnowledgeBase)))
	cmd.Println(keyValue("Project root", valueOrDefault(settings.Paths.ProjectRoot)))
	cmd.Println(keyValue("Index file", valueOrDefault(settings.Paths.IndexFile)))
	cmd.Println(keyValue("Project map", valueOrDefault(settings.Paths.ProjectMapFile)))
	cmd.Println(keyValue("Data dir", valueOrDefault(settings.Paths.DataDir)))
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Println(warnStyle.Render(fmt.Sprintf("Warning: %v", err)))
		cmd.Println("Run 'taskrag settings wizard' to fix configuration issues.")
	} else {
		cmd.Println(successStyle.Render("Configuration is valid."))
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case settingsService.IsSecret(key):
		cmd.Printf("Enter %s: ", key)
		value = readPassword()
		cmd.Println()
	default:
		return fmt.Errorf("a value is required for %s", key)
	}

	if err := settingsService.Set(key, value); err != nil {
		return err
	}

	shown := value
	if settingsService.IsSecret(key) {
		shown = maskAPIKey(value)
	}
	cmd.Printf("%s = %s\n", key, shown)
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println(title("taskrag Settings Wizard"))
	cmd.Println()

	reader := bufio.NewReader(os.Stdin)

	cmd.Println(headingStyle.Render("Step 1: Embedding Provider"))
	if err := configureEmbeddingProvider(cmd, reader); err != nil {
		return err
	}

	cmd.Println(headingStyle.Render("Step 2: LLM Provider"))
	if err := configureLLMProvider(cmd, reader); err != nil {
		return err
	}

	cmd.Println(headingStyle.Render("Step 3: Todoist"))
	cmd.Print("Enter Todoist API token (empty to skip): ")
	if token := readPassword(); token != "" {
		if err := settingsService.Set("todoist.token", token); err != nil {
			return err
		}
	}
	cmd.Println()

	cmd.Println(headingStyle.Render("Step 4: Knowledge Base"))
	cmd.Print("Knowledge base directory (empty to skip): ")
	if dir := readLine(reader); dir != "" {
		if err := settingsService.Set("paths.knowledge_base", dir); err != nil {
			return err
		}
	}
	cmd.Println()

	cmd.Println(title("Configuration Complete!"))
	if err := settingsService.Validate(); err != nil {
		cmd.Println(warnStyle.Render(fmt.Sprintf("Warning: %v", err)))
	} else {
		cmd.Println(successStyle.Render("All settings are valid and saved."))
	}

	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(os.Stdin)
	return configureEmbeddingProvider(cmd, reader)
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(os.Stdin)
	return configureLLMProvider(cmd, reader)
}

//nolint:dupl // Similar to configureLLMProvider but for embeddings - intentional for CLI flow clarity
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultEmbeddingModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword()
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Println(errorStyle.Render(fmt.Sprintf("FAILED: %v", err)))
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println(successStyle.Render("OK"))

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

//nolint:dupl // Similar to configureEmbeddingProvider but for LLM - intentional for CLI flow clarity
func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultLLMModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword()
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	if selectedProvider == domain.AIProviderYandex {
		cmd.Print("Enter Yandex Cloud folder ID: ")
		folderID := readLine(reader)
		if folderID == "" {
			return errors.New("folder ID is required for YandexGPT")
		}
		if err := settingsService.Set("llm.folder_id", folderID); err != nil {
			return err
		}
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Println(errorStyle.Render(fmt.Sprintf("FAILED: %v", err)))
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println(successStyle.Render("OK"))

	cmd.Printf("LLM provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func secretValue(v string) string {
	if v == "" {
		return "(not set)"
	}
	return maskAPIKey(v)
}

func valueOrDefault(v string) string {
	if v == "" {
		return "(default)"
	}
	return v
}

func status(ok bool) string {
	if ok {
		return successStyle.Render("configured")
	}
	return warnStyle.Render("not configured")
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
