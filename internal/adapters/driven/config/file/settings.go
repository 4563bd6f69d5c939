package file

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// EmbeddingSettings reads the embedding provider settings from cs.
// Zero or missing values fall back to the key defaults.
func EmbeddingSettings(cs driven.ConfigStore) domain.EmbeddingSettings {
	provider := domain.AIProvider(cs.GetString(KeyEmbeddingProvider))
	if provider == "" {
		provider = domain.AIProviderOpenAI
	}
	model := cs.GetString(KeyEmbeddingModel)
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}

	return domain.EmbeddingSettings{
		Provider:          provider,
		Model:             model,
		BaseURL:           cs.GetString(KeyEmbeddingBaseURL),
		APIKey:            cs.GetString(KeyEmbeddingAPIKey),
		MaxConcurrency:    positive(cs.GetInt(KeyEmbeddingConcurrency), KeyEmbeddingConcurrency),
		RequestsPerSecond: max(cs.GetFloat(KeyEmbeddingRate), 0),
		MaxAttempts:       positive(cs.GetInt(KeyEmbeddingAttempts), KeyEmbeddingAttempts),
	}
}

// ChunkSettings reads the chunker settings from cs.
func ChunkSettings(cs driven.ConfigStore) domain.ChunkSettings {
	return domain.ChunkSettings{
		Size:    positive(cs.GetInt(KeyChunkSize), KeyChunkSize),
		Overlap: max(intOr(cs, KeyChunkOverlap), 0),
	}
}

// PartialPolicy reads the ingest partial policy, defaulting to abort.
func PartialPolicy(cs driven.ConfigStore) domain.PartialPolicy {
	p := domain.PartialPolicy(cs.GetString(KeyPartialPolicy))
	if !p.IsValid() {
		return domain.PartialPolicyAbort
	}
	return p
}

func positive(v int, key string) int {
	if v > 0 {
		return v
	}
	k, _ := LookupKey(key)
	d, _ := k.Default.(int)
	return d
}

// intOr returns the key default when cs has no value for key at all.
func intOr(cs driven.ConfigStore, key string) int {
	if _, ok := cs.Get(key); ok {
		return cs.GetInt(key)
	}
	k, _ := LookupKey(key)
	d, _ := k.Default.(int)
	return d
}
