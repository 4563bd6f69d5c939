package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		// Should not panic
		result.Close()
	})
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantDims int
		wantErr  bool
	}{
		{
			name: "ollama provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "nomic-embed-text",
			},
			wantDims: 768,
		},
		{
			name: "ollama unknown model uses default dimensions",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				Model:    "custom-model-unknown",
			},
			wantDims: 768,
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-large",
			},
			wantDims: 3072,
		},
		{
			name: "openai without key fails",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				Model:    "text-embedding-3-small",
			},
			wantErr: true,
		},
		{
			name:     "unknown provider fails",
			settings: &domain.EmbeddingSettings{Provider: "cohere"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer svc.Close()
			assert.Equal(t, tt.wantDims, svc.Dimensions())
			assert.Equal(t, tt.settings.Model, svc.ModelName())
		})
	}
}

func TestNewEmbedder(t *testing.T) {
	t.Run("unconfigured settings", func(t *testing.T) {
		_, err := NewEmbedder(nil)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

		_, err = NewEmbedder(&domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI})
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable, "openai needs an API key")
	})

	t.Run("wraps the provider", func(t *testing.T) {
		result, err := NewEmbedder(&domain.EmbeddingSettings{
			Provider:       domain.AIProviderOllama,
			Model:          "all-minilm",
			MaxConcurrency: 2,
			MaxAttempts:    3,
		})
		require.NoError(t, err)
		defer result.Close()

		require.NotNil(t, result.Embedder)
		assert.Equal(t, 384, result.Embedder.Dimensions())
		assert.Equal(t, "all-minilm", result.Embedder.ModelName())
	})
}

func TestValidateEmbeddingConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing to validate", func(t *testing.T) {
		assert.NoError(t, ValidateEmbeddingConfig(ctx, nil))
		assert.NoError(t, ValidateEmbeddingConfig(ctx, &domain.EmbeddingSettings{}))
	})

	t.Run("reachable ollama", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			_, _ = w.Write([]byte(`{"models":[]}`))
		}))
		defer srv.Close()

		err := ValidateEmbeddingConfig(ctx, &domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  srv.URL,
		})
		assert.NoError(t, err)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
		}))
		defer srv.Close()

		err := ValidateEmbeddingConfig(ctx, &domain.EmbeddingSettings{
			Provider: domain.AIProviderOpenAI,
			APIKey:   "wrong",
			BaseURL:  srv.URL,
		})
		assert.ErrorIs(t, err, domain.ErrAuthFailed)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		err := ValidateEmbeddingConfig(ctx, &domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  url,
		})
		assert.Error(t, err)
	})
}
