package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

var conversationCmd = &cobra.Command{
	Use:   "conversation",
	Short: "Manage documents by conversation",
}

var conversationDeleteCmd = &cobra.Command{
	Use:   "delete [conversation-id]",
	Short: "Delete every document in a conversation",
	Long: `Marks all of the owner's documents in a conversation inactive. With
--permanent they are removed along with their chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runConversationDelete,
}

var deletePermanent bool

func init() {
	conversationDeleteCmd.Flags().BoolVar(&deletePermanent, "permanent", false, "remove documents instead of marking them inactive")
	conversationCmd.AddCommand(conversationDeleteCmd)
	rootCmd.AddCommand(conversationCmd)
}

func runConversationDelete(cmd *cobra.Command, args []string) error {
	if lifecycleService == nil {
		return errors.New("lifecycle service not configured")
	}

	n, err := lifecycleService.DeleteAllForConversation(cmd.Context(), args[0], owner(), deletePermanent)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, map[string]any{
			"deleted_count": n,
			"message":       services.DeletedMessage(n, deletePermanent),
		})
	}
	cmd.Println(services.DeletedMessage(n, deletePermanent))
	return nil
}
