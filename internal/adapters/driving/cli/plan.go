package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

var (
	planProject string
	planNoRAG   bool
)

var planCmd = &cobra.Command{
	Use:   "plan [request]",
	Short: "Break a request into subtasks",
	Long: `Asks the chat model to split a feature request into ordered subtasks,
using knowledge base context when available.

With --project the subtasks are published as Todoist tasks in that
project, which is created on first use.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planProject, "project", "p", "", "publish the subtasks to this Todoist project")
	planCmd.Flags().BoolVar(&planNoRAG, "no-rag", false, "skip knowledge base context")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.Breakdown == nil {
		return errors.New("task breakdown not configured: set llm.provider")
	}
	ctx := commandContext(cmd)

	var ragContext string
	if !planNoRAG && svc.RAG != nil {
		ragContext = svc.RAG.ContextFor(ctx, args[0])
	}

	breakdown, err := svc.Breakdown.BreakdownTask(ctx, args[0], ragContext)
	if err != nil {
		return fmt.Errorf("breakdown failed: %w", err)
	}
	printBreakdown(cmd, breakdown, ragContext != "")

	if planProject == "" {
		return nil
	}

	result, err := svc.Breakdown.PublishBreakdown(ctx, breakdown, planProject)
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	cmd.Println()
	cmd.Println(successStyle.Render(fmt.Sprintf("Created %d tasks in %q (project %s).",
		len(result.TaskIDs), planProject, result.ProjectID)))
	for _, failed := range result.Failed {
		cmd.Println(warnStyle.Render("  not created: " + failed))
	}
	return nil
}

func printBreakdown(cmd *cobra.Command, b *domain.TaskBreakdown, withContext bool) {
	cmd.Println(title(b.MainTask))
	if withContext {
		cmd.Println(mutedStyle.Render("(with knowledge base context)"))
	}
	cmd.Println()
	for i, st := range b.SortedSubtasks() {
		line := fmt.Sprintf("  %d. %s", i+1, st.Title)
		if st.Priority.IsValid() {
			line += mutedStyle.Render(fmt.Sprintf(" [p%d]", st.Priority))
		}
		cmd.Println(line)
		if st.Description != "" {
			cmd.Println("     " + mutedStyle.Render(truncate(st.Description, 120)))
		}
	}
}
