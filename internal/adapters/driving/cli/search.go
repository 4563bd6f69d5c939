package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	searchK            int
	searchAll          bool
	searchMIME         string
	searchConversation string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search ingested documents",
	Long: `Embeds the query and returns the most similar chunks of the owner's
documents, best match first. Soft-deleted documents are skipped unless --all
is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 0, "maximum number of results (default search.default_k)")
	searchCmd.Flags().BoolVar(&searchAll, "all", false, "include soft-deleted documents")
	searchCmd.Flags().StringVar(&searchMIME, "mime", "", "only search documents of this media type")
	searchCmd.Flags().StringVarP(&searchConversation, "conversation", "c", "", "only search this conversation")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}
	if err := requireEmbedder(); err != nil {
		return err
	}

	req := domain.NewSearchRequest(query, owner(), searchK)
	req.ActiveOnly = !searchAll
	req.MIMEType = searchMIME
	req.ConversationID = searchConversation

	hits, err := retrievalService.Search(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, hits)
	}

	return outputSearchTable(cmd, hits)
}

func outputSearchTable(cmd *cobra.Command, hits []domain.RetrievalHit) error {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range hits {
		// Format: [N] FileName p.Page (Score)
		name := hits[i].Document.FileName
		if name == "" {
			name = hits[i].DocumentID
		}
		cmd.Printf("[%d] %s p.%d (%.3f)\n", i+1, name, hits[i].Page, hits[i].Score)
		cmd.Printf("    %s\n", truncate(strings.Join(strings.Fields(hits[i].Content), " "), 160))
		cmd.Printf("    %s\n", hits[i].DocumentID)
		cmd.Println()
	}
	cmd.Printf("Found %d results\n", len(hits))
	return nil
}
