package file

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// EnvPrefix prefixes environment variables that override config keys.
// embedding.api_key is read from SERCHA_RAG_EMBEDDING_API_KEY.
const EnvPrefix = "SERCHA_RAG_"

// Key describes a recognised configuration key.
type Key struct {
	Name    string
	Default any
	// Secret keys are masked by config show.
	Secret bool
	Usage  string
	// Alias is a conventional environment variable consulted when neither
	// the prefixed variable nor the file sets the key.
	Alias string
}

// Configuration keys.
const (
	KeyStorageBackend       = "storage.backend"
	KeyStorageDataDir       = "storage.data_dir"
	KeyPostgresDSN          = "storage.postgres_dsn"
	KeyIVFFlatLists         = "storage.ivfflat_lists"
	KeyIVFFlatProbes        = "storage.ivfflat_probes"
	KeyEmbeddingProvider    = "embedding.provider"
	KeyEmbeddingModel       = "embedding.model"
	KeyEmbeddingBaseURL     = "embedding.base_url"
	KeyEmbeddingAPIKey      = "embedding.api_key"
	KeyEmbeddingConcurrency = "embedding.max_concurrency"
	KeyEmbeddingRate        = "embedding.requests_per_second"
	KeyEmbeddingAttempts    = "embedding.max_attempts"
	KeyChunkSize            = "chunking.size"
	KeyChunkOverlap         = "chunking.overlap"
	KeyPartialPolicy        = "ingest.partial_policy"
	KeySearchDefaultK       = "search.default_k"
	KeyDriveCredentials     = "gdrive.credentials_file"
	KeyDefaultOwner         = "owner.default"
)

var keys = []Key{
	{Name: KeyStorageBackend, Default: "sqlite", Usage: "sqlite, postgres or memory"},
	{Name: KeyStorageDataDir, Default: "", Usage: "sqlite data directory (default ~/.sercha-rag/data)"},
	{Name: KeyPostgresDSN, Default: "", Secret: true, Usage: "postgres connection string"},
	{Name: KeyIVFFlatLists, Default: 100, Usage: "ivfflat index lists"},
	{Name: KeyIVFFlatProbes, Default: 10, Usage: "ivfflat probes per query"},
	{Name: KeyEmbeddingProvider, Default: string(domain.AIProviderOpenAI), Usage: "openai or ollama"},
	{Name: KeyEmbeddingModel, Default: "", Usage: "embedding model (default depends on provider)"},
	{Name: KeyEmbeddingBaseURL, Default: "", Usage: "provider endpoint override"},
	{Name: KeyEmbeddingAPIKey, Default: "", Secret: true, Usage: "provider API key", Alias: "OPENAI_API_KEY"},
	{Name: KeyEmbeddingConcurrency, Default: 4, Usage: "maximum in-flight embedding calls"},
	{Name: KeyEmbeddingRate, Default: 0.0, Usage: "embedding calls per second, 0 for unlimited"},
	{Name: KeyEmbeddingAttempts, Default: 4, Usage: "attempts per embedding call"},
	{Name: KeyChunkSize, Default: 1000, Usage: "chunk size in characters"},
	{Name: KeyChunkOverlap, Default: 200, Usage: "overlap between chunks in characters"},
	{Name: KeyPartialPolicy, Default: string(domain.PartialPolicyAbort), Usage: "abort or partial"},
	{Name: KeySearchDefaultK, Default: domain.DefaultK, Usage: "results returned when k is not given"},
	{Name: KeyDriveCredentials, Default: "", Usage: "Google service account key or OAuth token JSON file"},
	{Name: KeyDefaultOwner, Default: "local", Usage: "owner used when --owner is not given"},
}

// Keys returns every recognised key, sorted by name.
func Keys() []Key {
	out := make([]Key, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupKey returns the description of a recognised key.
func LookupKey(name string) (Key, bool) {
	for _, k := range keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// ParseValue converts a command line value to the type of key's default.
func ParseValue(name, raw string) (any, error) {
	k, ok := LookupKey(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, name)
	}

	switch k.Default.(type) {
	case int:
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects an integer", domain.ErrInvalidInput, name)
		}
		return int64(v), nil
	case float64:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects a number", domain.ErrInvalidInput, name)
		}
		return v, nil
	case bool:
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects true or false", domain.ErrInvalidInput, name)
		}
		return v, nil
	}

	switch name {
	case KeyStorageBackend:
		switch raw {
		case "sqlite", "postgres", "memory":
		default:
			return nil, fmt.Errorf("%w: storage.backend must be sqlite, postgres or memory", domain.ErrInvalidInput)
		}
	case KeyEmbeddingProvider:
		if !domain.AIProvider(raw).IsValid() {
			return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, raw)
		}
	case KeyPartialPolicy:
		if !domain.PartialPolicy(raw).IsValid() {
			return nil, fmt.Errorf("%w: ingest.partial_policy must be abort or partial", domain.ErrInvalidInput)
		}
	}
	return raw, nil
}
