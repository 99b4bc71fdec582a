package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var askShowSources bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the knowledge base",
	Long: `Retrieves knowledge base context for the question, wraps it in the RAG
prompt and asks the chat model. Without relevant context the question is
sent as is.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askShowSources, "sources", "s", false, "list the chunks used as context")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.RAG == nil {
		return errors.New("answering not configured: set llm.provider")
	}

	answer, err := svc.RAG.Answer(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(answer.Answer)
	cmd.Println()
	cmd.Println(mutedStyle.Render(fmt.Sprintf("variant: %s, context chunks: %d, tokens: %d",
		answer.Variant, len(answer.Sources), answer.Usage.TotalTokens)))

	if askShowSources && len(answer.Sources) > 0 {
		cmd.Println()
		cmd.Println(headingStyle.Render("Sources"))
		for i, s := range answer.Sources {
			cmd.Printf("  [%d] %s (%.3f)\n", i+1, chunkLabel(s.Chunk), s.Score())
		}
	}
	return nil
}
