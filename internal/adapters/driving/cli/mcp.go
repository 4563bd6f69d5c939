package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/mcp"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so assistants can search,
ingest and delete documents.

By default the server communicates over stdio. Use --http to serve the
streamable HTTP transport instead.

Examples:
  # Stdio mode
  sercha-rag mcp

  # HTTP mode
  sercha-rag mcp --http :8080

Assistant configuration:
  {
    "mcpServers": {
      "sercha-rag": {
        "command": "/path/to/sercha-rag",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

var mcpAddr string

func init() {
	mcpCmd.Flags().StringVar(&mcpAddr, "http", "", "serve HTTP on this address instead of stdio")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ports := &mcp.Ports{
		Retrieval: retrievalService,
		Lifecycle: lifecycleService,
	}
	if embedder != nil {
		ports.Ingest = ingestService(false)
	} else {
		logger.Warn("ingest_text disabled: %v", requireEmbedder())
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if mcpAddr != "" {
		cmd.Printf("MCP server listening on http://%s\n", displayAddr(mcpAddr))
		return server.RunHTTP(cmd.Context(), mcpAddr)
	}

	return server.Run(cmd.Context())
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
