package cli

import (
	"bytes"
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/oauth"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
)

// fakeEmbedder derives a small vector from the characters of the text.
type fakeEmbedder struct{}

func (fakeEmbedder) vector(text string) []float32 {
	v := []float32{1, 0, 0}
	for i, r := range text {
		v[i%3] += float32(r%7) / 10
	}
	return v
}

func (e fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e fakeEmbedder) EmbedMany(_ context.Context, texts []string) []driven.EmbedResult {
	out := make([]driven.EmbedResult, len(texts))
	for i, text := range texts {
		out[i].Vector = e.vector(text)
	}
	return out
}

func (fakeEmbedder) Dimensions() int   { return 3 }
func (fakeEmbedder) ModelName() string { return "fake" }

// setupTestServices wires every command to in-memory components and returns
// a function restoring the package state.
func setupTestServices() func() {
	configStore = memory.NewConfigStore()
	store := memory.NewVectorStore()
	vectorStore = store
	embedder = fakeEmbedder{}
	c, err := chunker.New(chunker.WithChunkSize(100), chunker.WithOverlap(20))
	if err != nil {
		panic(err)
	}
	textChunker = c
	retrievalService = services.NewRetrievalService(store, embedder)
	lifecycleService = services.NewLifecycleService(store)

	return func() {
		configStore = nil
		vectorStore = nil
		embedder = nil
		embedderErr = nil
		textChunker = nil
		retrievalService = nil
		lifecycleService = nil
		openDriveLoader = newDriveLoader
		readPassword = defaultReadPassword
		openBrowser = oauth.OpenBrowser
		resetFlags(rootCmd)
		rootCmd.SetIn(nil)
	}
}

var defaultReadPassword = readPassword

// resetFlags restores every flag in the command tree to its default, since
// rootCmd is shared by all tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns its combined output.
// Flags from a previous call are reset first; cobra keeps their values.
func execute(args ...string) (string, error) {
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// ingestDoc stores text for the default owner in conversation.
func ingestDoc(name, conversation, text string) *domain.IngestResult {
	ingestConversation = conversation
	defer func() { ingestConversation = "" }()

	res, err := ingestRaw(context.Background(), &domain.RawDocument{
		FileName: name,
		URI:      "file:///tmp/" + name,
		MIMEType: "text/plain",
		Content:  []byte(text),
	}, "", false)
	if err != nil {
		panic(err)
	}
	return res
}
