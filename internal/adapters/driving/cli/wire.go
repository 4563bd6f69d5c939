package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-rag/internal/connectors/google"
	"github.com/custodia-labs/sercha-rag/internal/connectors/google/drive"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
)

// Components shared by commands. PersistentPreRunE fills them from
// configuration unless they are already set, as they are in tests.
var (
	configStore      driven.ConfigStore
	vectorStore      driven.VectorStore
	embedder         driven.Embedder
	textChunker      driven.Chunker
	fileLoader       = filesystem.New()
	retrievalService driving.RetrievalService
	lifecycleService driving.LifecycleService

	// embedderErr explains why embedder is nil.
	embedderErr error

	// openDriveLoader builds the Drive loader on first use.
	openDriveLoader = newDriveLoader

	closers []func() error
)

func initConfig() error {
	if configStore != nil {
		return nil
	}
	cs, err := file.NewConfigStore(configDir, file.WithDotEnv(".env"))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	configStore = cs
	return nil
}

func initServices(ctx context.Context) error {
	if vectorStore != nil {
		return nil
	}

	settings := file.EmbeddingSettings(configStore)
	result, err := ai.NewEmbedder(&settings)
	if err != nil {
		embedderErr = err
		logger.Debug("Embedding disabled: %v", err)
	} else {
		embedder = result.Embedder
		closers = append(closers, func() error { result.Close(); return nil })
	}

	store, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	vectorStore = store
	closers = append(closers, store.Close)

	c, err := chunker.New(chunker.FromSettings(file.ChunkSettings(configStore))...)
	if err != nil {
		return fmt.Errorf("configuring chunker: %w", err)
	}
	textChunker = c

	retrievalService = services.NewRetrievalService(store, embedder,
		services.WithDefaultK(configStore.GetInt(file.KeySearchDefaultK)))
	lifecycleService = services.NewLifecycleService(store)
	return nil
}

// openStore opens the configured vector store backend.
func openStore(ctx context.Context, settings domain.EmbeddingSettings) (driven.VectorStore, error) {
	backend := configStore.GetString(file.KeyStorageBackend)
	logger.Debug("Opening %s vector store", backend)

	switch backend {
	case "sqlite", "":
		return sqlite.NewStore(configStore.GetString(file.KeyStorageDataDir))

	case "postgres":
		dims := domain.EmbeddingDimensions()[settings.Model]
		if embedder != nil {
			dims = embedder.Dimensions()
		}
		if dims == 0 {
			return nil, fmt.Errorf("%w: unknown dimensions for embedding model %q",
				domain.ErrInvalidInput, settings.Model)
		}
		return postgres.New(ctx, postgres.Config{
			DSN:        configStore.GetString(file.KeyPostgresDSN),
			Dimensions: dims,
			Lists:      configStore.GetInt(file.KeyIVFFlatLists),
			Probes:     configStore.GetInt(file.KeyIVFFlatProbes),
		})

	case "memory":
		logger.Warn("Using the in-memory store; nothing is kept after exit")
		return memory.NewVectorStore(), nil

	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, backend)
	}
}

// ingestService builds the pipeline, optionally keeping partially embedded documents.
func ingestService(partial bool) driving.IngestService {
	policy := file.PartialPolicy(configStore)
	if partial {
		policy = domain.PartialPolicyPersist
	}
	return services.NewIngestService(vectorStore, embedder, normalisers.Default(), textChunker,
		services.WithPartialPolicy(policy))
}

// requireEmbedder reports why text queries and ingestion are unavailable.
func requireEmbedder() error {
	if embedder != nil {
		return nil
	}
	if embedderErr != nil {
		return embedderErr
	}
	return fmt.Errorf("%w: no embedding provider configured", domain.ErrEmbeddingUnavailable)
}

func newDriveLoader(ctx context.Context) (*drive.Loader, error) {
	path := configStore.GetString(file.KeyDriveCredentials)
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	ts, err := google.TokenSourceFromFile(ctx, path)
	if errors.Is(err, google.ErrNoCredentials) {
		return nil, fmt.Errorf("%w: set %s first", err, file.KeyDriveCredentials)
	}
	if err != nil {
		return nil, err
	}

	svc, err := google.NewDriveService(ctx, ts)
	if err != nil {
		return nil, err
	}
	return drive.New(svc), nil
}

// owner returns the owner commands act for.
func owner() string {
	if o := strings.TrimSpace(ownerFlag); o != "" {
		return o
	}
	if configStore != nil {
		if o := configStore.GetString(file.KeyDefaultOwner); o != "" {
			return o
		}
	}
	return "local"
}

func closeServices() {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("Closing: %v", err)
		}
	}
	closers = nil
}
