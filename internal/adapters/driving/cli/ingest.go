package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-rag/internal/connectors/google/drive"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	ingestConversation string
	ingestMIME         string
	ingestURI          string
	ingestName         string
	ingestID           string
	ingestPartial      bool
	driveFolder        bool
	watchSettle        = filesystem.DefaultSettle
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path|-]",
	Short: "Ingest a local file or standard input",
	Long: `Chunks, embeds and stores a document for the current owner.

The media type is detected from the file extension, then from the content.
Use - to read the document from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var ingestDriveCmd = &cobra.Command{
	Use:   "ingest-drive [link]",
	Short: "Ingest a Google Drive file or folder",
	Long: `Fetches a file from Google Drive and ingests it. Folder links are walked
recursively and every exportable file is ingested. Google Docs are exported as
HTML, Sheets as CSV and Slides as plain text.

Credentials are read from the file named by gdrive.credentials_file.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestDrive,
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest files as they are created in a directory",
	Long: `Watches a directory tree and ingests each new file once writes to it
settle. Hidden files and directories are ignored. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestConversation, "conversation", "c", "", "conversation the document belongs to")
	ingestCmd.Flags().StringVar(&ingestMIME, "mime", "", "media type (default: detected)")
	ingestCmd.Flags().StringVar(&ingestURI, "uri", "", "original location (default: file URI, or stdin)")
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "display name (default: file name)")
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "UUID to store the document under")
	ingestCmd.Flags().BoolVar(&ingestPartial, "partial", false, "keep the document when some chunks fail to embed")
	_ = ingestCmd.MarkFlagRequired("conversation")

	ingestDriveCmd.Flags().StringVarP(&ingestConversation, "conversation", "c", "", "conversation the documents belong to")
	ingestDriveCmd.Flags().BoolVar(&driveFolder, "folder", false, "treat the link as a folder and ingest its files")
	_ = ingestDriveCmd.MarkFlagRequired("conversation")

	watchCmd.Flags().StringVarP(&ingestConversation, "conversation", "c", "", "conversation new documents belong to")
	_ = watchCmd.MarkFlagRequired("conversation")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(ingestDriveCmd)
	rootCmd.AddCommand(watchCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := requireEmbedder(); err != nil {
		return err
	}

	var raw *domain.RawDocument
	if args[0] == "-" {
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading standard input: %w", err)
		}
		raw = &domain.RawDocument{
			FileName: ingestName,
			URI:      "stdin",
			MIMEType: filesystem.DetectMIMEType(ingestName, content),
			Content:  content,
		}
	} else {
		doc, err := fileLoader.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", args[0], err)
		}
		raw = doc
	}

	if ingestMIME != "" {
		raw.MIMEType = ingestMIME
	}
	if ingestURI != "" {
		raw.URI = ingestURI
	}
	if ingestName != "" {
		raw.FileName = ingestName
	}

	res, err := ingestRaw(cmd.Context(), raw, ingestID, ingestPartial)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	return printIngestResult(cmd, res)
}

func runIngestDrive(cmd *cobra.Command, args []string) error {
	if err := requireEmbedder(); err != nil {
		return err
	}

	ref, err := drive.ParseDriveID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	loader, err := openDriveLoader(ctx)
	if err != nil {
		return fmt.Errorf("connecting to Google Drive: %w", err)
	}

	if !ref.Folder && !driveFolder {
		raw, err := loader.Load(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", args[0], err)
		}
		res, err := ingestRaw(ctx, raw, "", false)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		return printIngestResult(cmd, res)
	}

	var results []*domain.IngestResult
	stats, err := loader.LoadFolder(ctx, args[0], func(ctx context.Context, raw *domain.RawDocument) error {
		res, err := ingestRaw(ctx, raw, "", false)
		if err != nil {
			return err
		}
		results = append(results, res)
		if !jsonOutput {
			cmd.Printf("Ingested %s as %s (%d chunks)\n", res.Document.FileName, res.Document.ID, res.ChunkCount)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking folder: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, map[string]any{
			"ingested":  results,
			"processed": stats.Processed,
			"skipped":   stats.Skipped,
			"failed":    len(stats.Errors),
		})
	}

	cmd.Printf("\n%d ingested, %d skipped, %d failed\n", stats.Loaded, stats.Skipped, len(stats.Errors))
	for _, e := range stats.Errors {
		cmd.PrintErrf("  %v\n", e)
	}
	if len(stats.Errors) > 0 {
		return errors.New("some files could not be ingested")
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := requireEmbedder(); err != nil {
		return err
	}
	cmd.Printf("Watching %s (Ctrl-C to stop)\n", args[0])
	return watchAndIngest(cmd.Context(), cmd, args[0])
}

// watchAndIngest ingests files created under dir until ctx ends.
func watchAndIngest(ctx context.Context, cmd *cobra.Command, dir string) error {
	w := filesystem.NewWatcher(dir, fileLoader, filesystem.WithSettle(watchSettle))
	defer w.Close()

	events, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	for ev := range events {
		if ev.Err != nil {
			cmd.PrintErrf("Skipping %s: %v\n", ev.Path, ev.Err)
			continue
		}
		res, err := ingestRaw(ctx, ev.Document, "", false)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			cmd.PrintErrf("Failed to ingest %s: %v\n", ev.Path, err)
			continue
		}
		cmd.Printf("Ingested %s as %s (%d chunks)\n", ev.Path, res.Document.ID, res.ChunkCount)
	}
	return nil
}

// ingestRaw stores a loaded document for the current owner and conversation.
func ingestRaw(ctx context.Context, raw *domain.RawDocument, id string, partial bool) (*domain.IngestResult, error) {
	return ingestService(partial).Ingest(ctx, raw.Content, domain.IngestMetadata{
		DocumentID:     id,
		FileName:       raw.FileName,
		MIMEType:       raw.MIMEType,
		URI:            raw.URI,
		OwnerID:        owner(),
		ConversationID: ingestConversation,
		Metadata:       maps.Clone(raw.Metadata),
	})
}

func printIngestResult(cmd *cobra.Command, res *domain.IngestResult) error {
	if jsonOutput {
		return printJSON(cmd, res)
	}

	cmd.Printf("Ingested %s as %s\n", res.Document.FileName, res.Document.ID)
	cmd.Printf("  Chunks: %d\n", res.ChunkCount)
	if len(res.MissingPages) > 0 {
		cmd.Printf("  Pages without embeddings: %v\n", res.MissingPages)
	}
	return nil
}
