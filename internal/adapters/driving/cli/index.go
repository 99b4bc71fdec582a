package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

var (
	indexRebuild bool
	indexWatch   bool
	indexText    string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the knowledge base",
	Long: `Reads every supported file of the knowledge base directory, chunks it,
embeds the chunks and stores them in the embedding index.

Use --rebuild to clear the index first and --watch to keep re-indexing
as files change. --text indexes a single snippet instead of the directory.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "clear the index before indexing")
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "re-index when files change")
	indexCmd.Flags().StringVar(&indexText, "text", "", "index a single text snippet")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.Ingest == nil {
		return errors.New("ingestion not configured: set embedding.provider and paths.knowledge_base")
	}
	ctx := commandContext(cmd)

	if indexText != "" {
		n, err := svc.Ingest.IngestText(ctx, indexText, map[string]string{domain.MetaSource: "cli"})
		if err != nil {
			return fmt.Errorf("index failed: %w", err)
		}
		cmd.Println(successStyle.Render(fmt.Sprintf("Indexed %d chunks.", n)))
		return nil
	}

	stats, err := svc.Ingest.IngestSource(ctx, indexRebuild)
	if stats != nil {
		printIngestStats(cmd, stats)
	}
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	if !indexWatch {
		return nil
	}

	cmd.Println(mutedStyle.Render("Watching for changes, press Ctrl+C to stop..."))
	err = svc.Ingest.Watch(ctx, func(change domain.RawDocumentChange, err error) {
		if err != nil {
			cmd.PrintErrln(errorStyle.Render(fmt.Sprintf("re-index after %s %s failed: %v", change.Type, change.Document.URI, err)))
			return
		}
		cmd.Printf("%s %s\n", mutedStyle.Render(change.Type.String()), change.Document.URI)
	})
	if errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func printIngestStats(cmd *cobra.Command, stats *domain.IngestStats) {
	cmd.Println(title("Indexing"))
	cmd.Println(keyValue("Files", stats.Files))
	cmd.Println(keyValue("Skipped", stats.Skipped))
	cmd.Println(keyValue("Chunks", stats.Chunks))
	if len(stats.Errors) > 0 {
		cmd.Println(keyValue("Errors", len(stats.Errors)))
		for _, e := range stats.Errors {
			cmd.Println("    " + errorStyle.Render(e))
		}
	}
}
