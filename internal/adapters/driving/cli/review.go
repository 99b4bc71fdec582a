package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

var reviewCmd = &cobra.Command{
	Use:   "review [owner/repo#number | url]",
	Short: "Review a GitHub pull request",
	Long: `Fetches a pull request with its changed files and diff, adds knowledge
base context and asks the chat model for a review.

The pull request is read through the GitHub REST API, or through a GitHub
MCP server when github.mcp_command or github.mcp_url is set.`,
	Example: `  taskrag review acme/api#42
  taskrag review https://github.com/acme/api/pull/42`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	ref, err := domain.ParsePullRequestRef(args[0])
	if err != nil {
		return err
	}

	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.Review == nil {
		return errors.New("review not configured: set llm.provider and github.token or github.mcp_command")
	}

	review, err := svc.Review.Review(commandContext(cmd), ref)
	if err != nil {
		return fmt.Errorf("review failed: %w", err)
	}

	cmd.Println(title(fmt.Sprintf("%s %s", review.Ref, review.Title)))
	cmd.Println(mutedStyle.Render(fmt.Sprintf("%d files changed", review.Files)))
	if review.Truncated {
		cmd.Println(warnStyle.Render("diff was truncated for the model"))
	}
	cmd.Println()
	cmd.Println(review.Text)
	return nil
}
