package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

var comparePrompts bool

var compareCmd = &cobra.Command{
	Use:   "compare [question]",
	Short: "Compare baseline and reranked retrieval",
	Long: `Builds both retrieval variants for a question and shows them side by
side: the baseline keeps raw similarity order, the reranked variant blends
similarity with query-token overlap and filters weak matches.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().BoolVar(&comparePrompts, "prompts", false, "print the full prompt of each variant")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.RAG == nil {
		return errors.New("retrieval not configured: set embedding.provider")
	}

	result := svc.RAG.BuildComparison(commandContext(cmd), args[0])

	cmd.Println(title("Retrieval comparison"))
	cmd.Println()
	cmd.Println(lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(renderVariant(result.Baseline)),
		" ",
		boxStyle.Render(renderVariant(result.Reranked)),
	))

	if comparePrompts {
		for _, v := range []domain.RAGVariantContext{result.Baseline, result.Reranked} {
			cmd.Println()
			cmd.Println(headingStyle.Render(v.Variant.String() + " prompt"))
			cmd.Println(v.Prompt)
		}
	}
	return nil
}

func renderVariant(v domain.RAGVariantContext) string {
	lines := []string{
		headingStyle.Render(v.Variant.String()),
		fmt.Sprintf("candidates: %d", v.Stats.CandidateCount),
		fmt.Sprintf("retained:   %d", v.Stats.RetainedCount),
		fmt.Sprintf("avg sim:    %.3f", v.Stats.AvgSimilarity),
		fmt.Sprintf("max sim:    %.3f", v.Stats.MaxSimilarity),
	}
	if v.Variant == domain.RAGVariantReranked {
		lines = append(lines, fmt.Sprintf("avg score:  %.3f", v.Stats.AvgCombinedScore))
		if v.Stats.UsedFallback {
			lines = append(lines, warnStyle.Render("filter fallback used"))
		}
	}
	if !v.HasContext() {
		lines = append(lines, mutedStyle.Render("no context"))
	}
	for i, c := range v.Chunks {
		lines = append(lines, fmt.Sprintf("%d. %s (%.3f)", i+1, truncate(chunkLabel(c.Chunk), 32), c.Score()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
