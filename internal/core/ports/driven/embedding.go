package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Implementations talk to one provider and make a single attempt per call:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one request.
	// The output is index-aligned with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536, 3072).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbedResult is the outcome for one input of Embedder.EmbedMany.
// Exactly one of Vector and Err is set.
type EmbedResult struct {
	Vector []float32
	Err    error
}

// Embedder is the embedding client used by core services.
// It retries transient failures, caps in-flight calls and never
// reorders results.
type Embedder interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedMany embeds texts concurrently. result[i] belongs to texts[i].
	// A failure for one text does not abort the others.
	EmbedMany(ctx context.Context, texts []string) []EmbedResult

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}
