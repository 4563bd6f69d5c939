package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/connectors"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage ingested documents",
	Long:  `List, view, rename, delete or restore the owner's documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentRenameCmd = &cobra.Command{
	Use:   "rename [doc-id] [name]",
	Short: "Change a document's display name",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentRename,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document",
	Long: `Marks a document inactive so it no longer appears in search. With --hard
the document and its chunks are removed permanently.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentDelete,
}

var documentRestoreCmd = &cobra.Command{
	Use:   "restore [doc-id]",
	Short: "Restore a soft-deleted document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentRestore,
}

var (
	listConversation string
	listQuery        string
	listMIME         string
	listAll          bool
	listLimit        int
	deleteHard       bool
)

func init() {
	documentListCmd.Flags().StringVarP(&listConversation, "conversation", "c", "", "only list this conversation")
	documentListCmd.Flags().StringVarP(&listQuery, "query", "q", "", "file name contains (case-insensitive)")
	documentListCmd.Flags().StringVar(&listMIME, "mime", "", "only list this media type")
	documentListCmd.Flags().BoolVar(&listAll, "all", false, "include soft-deleted documents")
	documentListCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "maximum number of documents (0 for all)")
	documentDeleteCmd.Flags().BoolVar(&deleteHard, "hard", false, "remove the document and its chunks")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentRenameCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentRestoreCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	docs, err := retrievalService.List(cmd.Context(), domain.DocumentFilter{
		OwnerID:        owner(),
		ConversationID: listConversation,
		Query:          listQuery,
		MIMEType:       listMIME,
		ActiveOnly:     !listAll,
		Limit:          listLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, docs)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Name: %s\n", docs[i].FileName)
		cmd.Printf("    Conversation: %s\n", docs[i].ConversationID)
		if !docs[i].Active {
			cmd.Println("    Status: inactive")
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	docID := args[0]
	details, err := retrievalService.Get(cmd.Context(), docID, owner())
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, details)
	}

	doc := details.Document
	status := "active"
	if !doc.Active {
		status = "inactive"
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Name:         %s\n", doc.FileName)
	cmd.Printf("  Type:         %s\n", doc.MIMEType)
	cmd.Printf("  URI:          %s\n", doc.URI)
	if link := connectors.ResolveWebURL(doc.URI, doc.Metadata); link != doc.URI {
		cmd.Printf("  Open:         %s\n", link)
	}
	cmd.Printf("  Conversation: %s\n", doc.ConversationID)
	cmd.Printf("  Status:       %s\n", status)
	cmd.Printf("  Chunks:       %d\n", details.ChunkCount)
	if len(details.MissingPages) > 0 {
		cmd.Printf("  Missing:      %v\n", details.MissingPages)
	}
	cmd.Printf("  Created:      %s\n", doc.CreatedAt.Format(time.DateTime))
	cmd.Printf("  Updated:      %s\n", doc.UpdatedAt.Format(time.DateTime))

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for _, k := range slices.Sorted(maps.Keys(doc.Metadata)) {
			cmd.Printf("    %s: %v\n", k, doc.Metadata[k])
		}
	}

	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	content, err := retrievalService.Content(cmd.Context(), args[0], owner())
	if err != nil {
		return fmt.Errorf("failed to get content: %w", err)
	}

	cmd.Println(content)
	return nil
}

func runDocumentRename(cmd *cobra.Command, args []string) error {
	if lifecycleService == nil {
		return errors.New("lifecycle service not configured")
	}

	name := args[1]
	doc, err := lifecycleService.Update(cmd.Context(), args[0], owner(), domain.DocumentUpdate{FileName: &name})
	if err != nil {
		return fmt.Errorf("failed to rename document: %w", err)
	}

	cmd.Printf("Renamed %s to %s\n", doc.ID, doc.FileName)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if lifecycleService == nil {
		return errors.New("lifecycle service not configured")
	}

	var err error
	if deleteHard {
		err = lifecycleService.HardDelete(cmd.Context(), args[0], owner())
	} else {
		err = lifecycleService.SoftDelete(cmd.Context(), args[0], owner())
	}
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Println(services.DeletedMessage(1, deleteHard))
	return nil
}

func runDocumentRestore(cmd *cobra.Command, args []string) error {
	if lifecycleService == nil {
		return errors.New("lifecycle service not configured")
	}

	if err := lifecycleService.Restore(cmd.Context(), args[0], owner()); err != nil {
		return fmt.Errorf("failed to restore document: %w", err)
	}

	cmd.Printf("Restored %s\n", args[0])
	return nil
}
