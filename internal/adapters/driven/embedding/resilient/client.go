// Package resilient wraps an embedding provider with retry, rate limiting
// and bounded concurrency.
//
// Transient failures (rate limits, timeouts, 5xx) are retried with bounded
// exponential backoff. When retries are exhausted, or the failure is
// permanent, the affected input is reported as domain.ErrEmbeddingUnavailable
// while other inputs still complete.
package resilient

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.Embedder = (*Client)(nil)

// Default configuration values.
const (
	DefaultMaxConcurrency = 4
	DefaultMaxAttempts    = 4
	DefaultBatchSize      = 16
	DefaultBaseDelay      = 200 * time.Millisecond
	DefaultMaxDelay       = 5 * time.Second

	// maxRetryAfter caps how long a provider's Retry-After hint can stall a call.
	maxRetryAfter = time.Minute
)

// Config controls retry and concurrency behaviour.
type Config struct {
	// MaxConcurrency caps in-flight provider calls (default: 4).
	MaxConcurrency int

	// MaxAttempts bounds calls per request, including the first (default: 4).
	MaxAttempts int

	// BatchSize is how many texts are sent per provider request (default: 16).
	BatchSize int

	// BaseDelay is the backoff before the second attempt (default: 200ms).
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff (default: 5s).
	MaxDelay time.Duration

	// RequestsPerSecond limits the call rate. Zero disables the limiter.
	RequestsPerSecond float64

	// Burst is the limiter burst size (default: MaxConcurrency).
	Burst int
}

// ConfigFromSettings maps embedding settings onto a client config.
func ConfigFromSettings(s domain.EmbeddingSettings) Config {
	return Config{
		MaxConcurrency:    s.MaxConcurrency,
		MaxAttempts:       s.MaxAttempts,
		RequestsPerSecond: s.RequestsPerSecond,
	}
}

// Client is an order-preserving, retrying embedding client.
type Client struct {
	svc     driven.EmbeddingService
	cfg     Config
	limiter *rate.Limiter

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New wraps svc with the given configuration.
func New(svc driven.EmbeddingService, cfg Config) *Client {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.MaxConcurrency
	}

	c := &Client{svc: svc, cfg: cfg, sleep: sleepContext}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return c
}

// Dimensions returns the embedding vector size.
func (c *Client) Dimensions() int { return c.svc.Dimensions() }

// ModelName returns the name of the embedding model being used.
func (c *Client) ModelName() string { return c.svc.ModelName() }

// Embed returns the vector for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := c.withRetry(ctx, func(ctx context.Context) error {
		v, err := c.svc.Embed(ctx, text)
		if err != nil {
			return err
		}
		if err := c.checkDimensions(v); err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return vec, nil
}

// EmbedMany embeds texts in batches with at most MaxConcurrency provider
// calls in flight. result[i] always belongs to texts[i], whatever order the
// calls complete in. A batch that fails permanently is retried text by text
// so that only the offending inputs are marked unavailable.
func (c *Client) EmbedMany(ctx context.Context, texts []string) []driven.EmbedResult {
	results := make([]driven.EmbedResult, len(texts))
	if len(texts) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(c.cfg.MaxConcurrency)

	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(texts))

		if err := ctx.Err(); err != nil {
			fail(results[start:end], err)
			continue
		}

		g.Go(func() error {
			c.embedRange(ctx, texts[start:end], results[start:end])
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// embedRange fills out for batch. out and batch have equal length.
func (c *Client) embedRange(ctx context.Context, batch []string, out []driven.EmbedResult) {
	if err := ctx.Err(); err != nil {
		fail(out, err)
		return
	}

	var vecs [][]float32
	err := c.withRetry(ctx, func(ctx context.Context) error {
		v, err := c.svc.EmbedBatch(ctx, batch)
		if err != nil {
			return err
		}
		if len(v) != len(batch) {
			return fmt.Errorf("provider returned %d vectors for %d inputs", len(v), len(batch))
		}
		for _, vec := range v {
			if err := c.checkDimensions(vec); err != nil {
				return err
			}
		}
		vecs = v
		return nil
	})

	switch {
	case err == nil:
		for i, v := range vecs {
			out[i] = driven.EmbedResult{Vector: v}
		}
	case len(batch) > 1 && !domain.IsTransient(err) && ctx.Err() == nil:
		logger.Debug("embedding batch of %d failed permanently, isolating inputs: %v", len(batch), err)
		for i, text := range batch {
			vec, err := c.Embed(ctx, text)
			out[i] = driven.EmbedResult{Vector: vec, Err: err}
		}
	default:
		fail(out, err)
	}
}

// withRetry runs op until it succeeds, fails permanently or runs out of
// attempts. Each attempt waits for the rate limiter first.
func (c *Client) withRetry(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt, err)
			logger.Warn("embedding attempt %d/%d failed, retrying in %s: %v", attempt, c.cfg.MaxAttempts, delay, err)
			if serr := c.sleep(ctx, delay); serr != nil {
				return serr
			}
		}

		if c.limiter != nil {
			if lerr := c.limiter.Wait(ctx); lerr != nil {
				return lerr
			}
		}

		err = op(ctx)
		if err == nil || !domain.IsTransient(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", c.cfg.MaxAttempts, err)
}

// backoff returns the delay before the given attempt (1-based retries).
// A provider Retry-After hint wins over the computed delay.
func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	if hint, ok := domain.RetryAfter(lastErr); ok {
		return min(hint, maxRetryAfter)
	}

	d := c.cfg.MaxDelay
	if shift := attempt - 1; shift < 32 {
		if b := c.cfg.BaseDelay << shift; b > 0 && b < d {
			d = b
		}
	}
	// Equal jitter: half fixed, half random.
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

func (c *Client) checkDimensions(vec []float32) error {
	if want := c.svc.Dimensions(); want > 0 && len(vec) != want {
		return fmt.Errorf("vector has %d dimensions, model %s declares %d", len(vec), c.svc.ModelName(), want)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
}

func fail(out []driven.EmbedResult, err error) {
	for i := range out {
		out[i] = driven.EmbedResult{Err: unavailable(err)}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
