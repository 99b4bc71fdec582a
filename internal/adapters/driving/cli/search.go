package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the knowledge base",
	Long: `Embeds the query and lists the most similar knowledge base chunks,
ordered by cosine similarity.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.RAG == nil {
		return errors.New("search not configured: set embedding.provider")
	}

	results := svc.RAG.SearchRelevantChunks(commandContext(cmd), args[0])
	if searchLimit > 0 && len(results) > searchLimit {
		results = results[:searchLimit]
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	outputSearchTable(cmd, results)
	return nil
}

type searchResultJSON struct {
	Title      string  `json:"title,omitempty"`
	File       string  `json:"file,omitempty"`
	Similarity float64 `json:"similarity"`
	Text       string  `json:"text"`
}

func outputSearchJSON(cmd *cobra.Command, results []domain.ScoredEmbeddingChunk) error {
	out := make([]searchResultJSON, len(results))
	for i, r := range results {
		out[i] = searchResultJSON{
			Title:      r.Chunk.Meta(domain.MetaTitle),
			File:       r.Chunk.Meta(domain.MetaFile),
			Similarity: r.Similarity,
			Text:       r.Chunk.Text,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.ScoredEmbeddingChunk) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println(title("Results"))
	cmd.Println()
	for i, r := range results {
		cmd.Printf("  [%d] %s %s\n", i+1, chunkLabel(r.Chunk), mutedStyle.Render(fmt.Sprintf("(%.3f)", r.Similarity)))
		if file := r.Chunk.Meta(domain.MetaFile); file != "" {
			cmd.Printf("      File: %s\n", file)
		}
		cmd.Printf("      %s\n", truncate(r.Chunk.Text, 160))
		cmd.Println()
	}
}

// chunkLabel names a chunk by title, then file, then ID.
func chunkLabel(c domain.EmbeddingChunk) string {
	if t := c.Meta(domain.MetaTitle); t != "" {
		return t
	}
	if f := c.Meta(domain.MetaFile); f != "" {
		return f
	}
	return c.ID
}
