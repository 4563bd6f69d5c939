package resilient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// fakeProvider embeds text as [len(text), 1]. failFor decides per call
// whether to fail; it sees the batch and the call number for that batch.
type fakeProvider struct {
	mu       sync.Mutex
	calls    map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    func(texts []string) time.Duration
	failFor  func(texts []string, call int) error
	dims     int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{calls: make(map[string]int), dims: 2}
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	key := strings.Join(texts, "|")
	f.mu.Lock()
	f.calls[key]++
	call := f.calls[key]
	f.mu.Unlock()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(texts)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failFor != nil {
		if err := f.failFor(texts, call); err != nil {
			return nil, err
		}
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
		if f.dims != 2 {
			out[i] = make([]float32, f.dims)
		}
	}
	return out, nil
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *fakeProvider) Dimensions() int            { return 2 }
func (f *fakeProvider) ModelName() string          { return "fake" }
func (f *fakeProvider) Ping(context.Context) error { return nil }
func (f *fakeProvider) Close() error               { return nil }

func (f *fakeProvider) callCount(texts ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[strings.Join(texts, "|")]
}

// newTestClient returns a client whose backoff sleeps are recorded, not slept.
func newTestClient(p *fakeProvider, cfg Config) (*Client, *[]time.Duration) {
	c := New(p, cfg)
	var mu sync.Mutex
	sleeps := &[]time.Duration{}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*sleeps = append(*sleeps, d)
		mu.Unlock()
		return ctx.Err()
	}
	return c, sleeps
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strings.Repeat("x", i+1)
	}
	return out
}

func TestNew_Defaults(t *testing.T) {
	c := New(newFakeProvider(), Config{})
	assert.Equal(t, DefaultMaxConcurrency, c.cfg.MaxConcurrency)
	assert.Equal(t, DefaultMaxAttempts, c.cfg.MaxAttempts)
	assert.Equal(t, DefaultBatchSize, c.cfg.BatchSize)
	assert.Nil(t, c.limiter)
	assert.Equal(t, 2, c.Dimensions())
	assert.Equal(t, "fake", c.ModelName())

	c = New(newFakeProvider(), Config{RequestsPerSecond: 10})
	assert.NotNil(t, c.limiter)
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(domain.EmbeddingSettings{MaxConcurrency: 2, MaxAttempts: 7, RequestsPerSecond: 1.5})
	assert.Equal(t, Config{MaxConcurrency: 2, MaxAttempts: 7, RequestsPerSecond: 1.5}, cfg)
}

func TestEmbedMany_PreservesOrder(t *testing.T) {
	p := newFakeProvider()
	// Later batches finish first.
	p.delay = func(b []string) time.Duration { return time.Duration(20-len(b[0])) * time.Millisecond }
	c, _ := newTestClient(p, Config{BatchSize: 1, MaxConcurrency: 8})

	in := texts(20)
	results := c.EmbedMany(context.Background(), in)

	require.Len(t, results, 20)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, float32(len(in[i])), r.Vector[0], "result %d", i)
	}
}

func TestEmbedMany_CapsConcurrency(t *testing.T) {
	p := newFakeProvider()
	p.delay = func([]string) time.Duration { return 5 * time.Millisecond }
	c, _ := newTestClient(p, Config{BatchSize: 1, MaxConcurrency: 3})

	results := c.EmbedMany(context.Background(), texts(15))

	for _, r := range results {
		require.NoError(t, r.Err)
	}
	assert.LessOrEqual(t, p.peak.Load(), int32(3))
	assert.GreaterOrEqual(t, p.peak.Load(), int32(1))
}

func TestEmbedMany_Empty(t *testing.T) {
	c, _ := newTestClient(newFakeProvider(), Config{})
	assert.Empty(t, c.EmbedMany(context.Background(), nil))
}

func TestEmbedMany_RetriesTransientFailure(t *testing.T) {
	p := newFakeProvider()
	p.failFor = func(_ []string, call int) error {
		if call < 3 {
			return &domain.ProviderError{Provider: "fake", StatusCode: 503}
		}
		return nil
	}
	c, sleeps := newTestClient(p, Config{BatchSize: 4, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})

	in := texts(4)
	results := c.EmbedMany(context.Background(), in)

	for _, r := range results {
		require.NoError(t, r.Err)
	}
	assert.Equal(t, 3, p.callCount(in...))
	require.Len(t, *sleeps, 2)
	// Equal jitter keeps each delay within [d/2, d].
	assert.GreaterOrEqual(t, (*sleeps)[0], 50*time.Millisecond)
	assert.LessOrEqual(t, (*sleeps)[0], 100*time.Millisecond)
	assert.GreaterOrEqual(t, (*sleeps)[1], 100*time.Millisecond)
	assert.LessOrEqual(t, (*sleeps)[1], 200*time.Millisecond)
}

func TestEmbedMany_ExhaustedRetries(t *testing.T) {
	p := newFakeProvider()
	p.failFor = func([]string, int) error { return domain.ErrRateLimited }
	c, sleeps := newTestClient(p, Config{BatchSize: 2, MaxAttempts: 3})

	results := c.EmbedMany(context.Background(), texts(4))

	for _, r := range results {
		assert.ErrorIs(t, r.Err, domain.ErrEmbeddingUnavailable)
		assert.ErrorIs(t, r.Err, domain.ErrRateLimited)
		assert.Nil(t, r.Vector)
	}
	assert.Len(t, *sleeps, 4) // two retries per batch
}

func TestEmbedMany_PermanentFailureIsolated(t *testing.T) {
	p := newFakeProvider()
	p.failFor = func(b []string, _ int) error {
		for _, s := range b {
			if s == "bad" {
				return &domain.ProviderError{Provider: "fake", StatusCode: 400, Message: "invalid input"}
			}
		}
		return nil
	}
	c, sleeps := newTestClient(p, Config{BatchSize: 3})

	results := c.EmbedMany(context.Background(), []string{"a", "bad", "ccc", "dd"})

	require.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, domain.ErrEmbeddingUnavailable)
	assert.ErrorIs(t, results[1].Err, domain.ErrInvalidInput)
	require.NoError(t, results[2].Err)
	assert.Equal(t, float32(3), results[2].Vector[0])
	require.NoError(t, results[3].Err)
	assert.Empty(t, *sleeps, "permanent failures are not retried")
}

func TestEmbedMany_HonoursRetryAfter(t *testing.T) {
	p := newFakeProvider()
	p.failFor = func(_ []string, call int) error {
		if call == 1 {
			return &domain.ProviderError{Provider: "fake", StatusCode: 429, RetryAfter: 3 * time.Second}
		}
		return nil
	}
	c, sleeps := newTestClient(p, Config{BatchSize: 1})

	results := c.EmbedMany(context.Background(), []string{"a"})

	require.NoError(t, results[0].Err)
	assert.Equal(t, []time.Duration{3 * time.Second}, *sleeps)
}

func TestEmbedMany_CancelledContext(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestClient(p, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := c.EmbedMany(ctx, texts(3))
	for _, r := range results {
		assert.ErrorIs(t, r.Err, domain.ErrEmbeddingUnavailable)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, p.callCount(texts(3)...))
}

func TestEmbedMany_DimensionMismatch(t *testing.T) {
	p := newFakeProvider()
	p.dims = 3
	c, _ := newTestClient(p, Config{BatchSize: 1})

	results := c.EmbedMany(context.Background(), []string{"a"})
	assert.ErrorIs(t, results[0].Err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, results[0].Err.Error(), "dimensions")
}

func TestEmbed(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestClient(p, Config{})

	vec, err := c.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1}, vec)

	p.failFor = func([]string, int) error { return fmt.Errorf("wrapped: %w", domain.ErrAuthFailed) }
	_, err = c.Embed(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
}

func TestBackoff_CappedAtMaxDelay(t *testing.T) {
	c := New(newFakeProvider(), Config{BaseDelay: time.Second, MaxDelay: 2 * time.Second})
	for attempt := 1; attempt < 40; attempt++ {
		d := c.backoff(attempt, errors.New("x"))
		assert.LessOrEqual(t, d, 2*time.Second)
		assert.Positive(t, d)
	}
}

func TestBackoff_RetryAfterCapped(t *testing.T) {
	c := New(newFakeProvider(), Config{})
	d := c.backoff(1, &domain.ProviderError{StatusCode: 429, RetryAfter: time.Hour})
	assert.Equal(t, maxRetryAfter, d)
}
