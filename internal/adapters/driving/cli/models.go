package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// modelsTimeout bounds the model listing request.
const modelsTimeout = 15 * time.Second

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models",
	Long: `Shows the configured chat model and lists the embedding models offered
by the embedding provider.`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.Embedding == nil && svc.Chat == nil {
		return errors.New("no AI provider configured: run 'taskrag settings wizard'")
	}

	if svc.Chat != nil {
		tools := "no"
		if svc.Chat.SupportsTools() {
			tools = "yes"
		}
		cmd.Println(headingStyle.Render("Chat"))
		cmd.Println(keyValue("Model", svc.Chat.ModelName()))
		cmd.Println(keyValue("Tool calling", tools))
		cmd.Println()
	}

	if svc.Embedding == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(commandContext(cmd), modelsTimeout)
	defer cancel()

	models, err := svc.Embedding.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("listing embedding models: %w", err)
	}
	cmd.Println(headingStyle.Render("Embedding"))
	for _, m := range models {
		marker := "  "
		if m == svc.Embedding.ModelName() {
			marker = successStyle.Render("* ")
		}
		cmd.Println("  " + marker + m)
	}
	return nil
}
