package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

var (
	runProjectID string
	runHistory   bool
	runLimit     int
)

var runCmd = &cobra.Command{
	Use:   "run [project]",
	Short: "Work through the open tasks of a project",
	Long: `Fetches the open tasks of a Todoist project and lets the chat model
complete them one at a time with tool calls: reading and writing project
files, searching the project and managing tasks. A task is closed once the
model reports a result.

Use --history to list recent runs instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runProjectID, "id", "", "Todoist project ID instead of a name")
	runCmd.Flags().BoolVar(&runHistory, "history", false, "list recent runs")
	runCmd.Flags().IntVarP(&runLimit, "limit", "n", 10, "number of runs listed by --history")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.Executor == nil {
		return errors.New("task execution not configured: set llm.provider and todoist.token")
	}
	ctx := commandContext(cmd)

	if runHistory {
		reports, err := svc.Executor.History(ctx, runLimit)
		if err != nil {
			return fmt.Errorf("history failed: %w", err)
		}
		printHistory(cmd, reports)
		return nil
	}

	projectID := runProjectID
	if projectID == "" {
		if len(args) == 0 {
			return errors.New("project name or --id is required")
		}
		if svc.Projects == nil {
			return errors.New("project lookup not configured: set todoist.token")
		}
		projectID = svc.Projects.GetOrCreateProjectID(ctx, args[0])
		if projectID == "" {
			return fmt.Errorf("project %q could not be resolved", args[0])
		}
	}

	report, err := svc.Executor.Run(ctx, projectID, func(ev domain.ProgressEvent) {
		printProgress(cmd, ev)
	})
	if report != nil {
		printReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

func printProgress(cmd *cobra.Command, ev domain.ProgressEvent) {
	switch ev.Kind {
	case domain.ProgressTaskSelected:
		cmd.Println(headingStyle.Render("> " + ev.Message))
	case domain.ProgressToolCall, domain.ProgressContext:
		cmd.Println(mutedStyle.Render("  " + ev.Message))
	case domain.ProgressTaskClosed:
		cmd.Println(successStyle.Render("  " + ev.Message))
	case domain.ProgressToolError, domain.ProgressCloseFailed, domain.ProgressModelError:
		cmd.Println(errorStyle.Render("  " + ev.Message))
	case domain.ProgressCapacity:
		cmd.Println(warnStyle.Render("  " + ev.Message))
	default:
		cmd.Println("  " + ev.Message)
	}
}

func printReport(cmd *cobra.Command, r *domain.ExecutionReport) {
	cmd.Println()
	style := successStyle
	if r.State != domain.StateDone {
		style = warnStyle
	}
	cmd.Println(style.Render(r.Summary()))
	for _, n := range r.Notices {
		cmd.Println(warnStyle.Render("  " + n))
	}
}

func printHistory(cmd *cobra.Command, reports []*domain.ExecutionReport) {
	if len(reports) == 0 {
		cmd.Println("No runs recorded.")
		return
	}
	cmd.Println(title("Recent runs"))
	for _, r := range reports {
		cmd.Printf("  %s  %s  %-8s %d/%d completed  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			mutedStyle.Render(shortID(r.RunID)),
			r.State,
			r.CompletedCount(), len(r.Outcomes),
			mutedStyle.Render("project "+r.ProjectID))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
