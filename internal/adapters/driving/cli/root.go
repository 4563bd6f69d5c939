// Package cli provides the sercha-rag command line interface.
package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

// Global flags.
var (
	verbose    bool
	configDir  string
	ownerFlag  string
	jsonOutput bool
)

// annotationSkipServices marks commands that only need configuration.
const annotationSkipServices = "skip-services"

var rootCmd = &cobra.Command{
	Use:   "sercha-rag",
	Short: "Ingest documents and search them by meaning",
	Long: `sercha-rag chunks and embeds documents into a vector store and answers
owner-scoped similarity queries over the stored chunks.

Configuration is read from ~/.sercha-rag/config.toml, .env files and
SERCHA_RAG_* environment variables. See 'sercha-rag config show'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if err := initConfig(); err != nil {
			return err
		}
		if cmd.Annotations[annotationSkipServices] == "true" {
			return nil
		}
		return initServices(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "configuration directory (default ~/.sercha-rag)")
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "owner the command acts for (default owner.default)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// Execute runs the root command until it completes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	defer closeServices()

	return rootCmd.ExecuteContext(ctx)
}
