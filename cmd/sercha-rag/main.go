// Command sercha-rag ingests documents into a vector store and answers
// owner-scoped similarity queries over them.
package main

import (
	"os"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
