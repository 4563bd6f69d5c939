package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

func TestConfigStore_InterfaceCompliance(t *testing.T) {
	var store driven.ConfigStore = NewConfigStore()
	assert.Equal(t, ":memory:", store.Path())
	assert.NoError(t, store.Load())
	assert.NoError(t, store.Save())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("embedding.provider", "ollama"))
	require.NoError(t, store.Set("embedding.max_concurrency", int64(8)))
	require.NoError(t, store.Set("embedding.requests_per_second", 2.5))
	require.NoError(t, store.Set("search.active_only", true))

	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
	assert.Equal(t, 8, store.GetInt("embedding.max_concurrency"))
	assert.InDelta(t, 2.5, store.GetFloat("embedding.requests_per_second"), 1e-9)
	assert.Equal(t, 2, store.GetInt("embedding.requests_per_second"))
	assert.InDelta(t, 8.0, store.GetFloat("embedding.max_concurrency"), 1e-9)
	assert.True(t, store.GetBool("search.active_only"))
}

func TestConfigStore_MissingAndWrongType(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("chunk.size", "large"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Empty(t, store.GetString("missing"))
	assert.Zero(t, store.GetInt("chunk.size"))
	assert.Zero(t, store.GetFloat("chunk.size"))
	assert.False(t, store.GetBool("chunk.size"))
}

func TestConfigStore_Overwrite(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("chunk.size", 1000))
	require.NoError(t, store.Set("chunk.size", 500))
	assert.Equal(t, 500, store.GetInt("chunk.size"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Set(fmt.Sprintf("key.%d", i), i)
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = store.GetInt(fmt.Sprintf("key.%d", i))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		assert.Equal(t, i, store.GetInt(fmt.Sprintf("key.%d", i)))
	}
}

func TestConfigStore_ValuesIsACopy(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("owner.default", "team"))

	values := store.Values()
	values["owner.default"] = "changed"

	assert.Equal(t, "team", store.GetString("owner.default"))
	assert.Len(t, store.Values(), 1)
}
