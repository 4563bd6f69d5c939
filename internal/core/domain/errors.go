package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Domain errors represent business logic failures.
// Callers classify them with errors.Is; adapters wrap them with %w.
var (
	// ErrInvalidMetadata indicates ingestion metadata failed validation.
	// Returned before any side effect takes place.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrChunking indicates document content could not be turned into chunks.
	ErrChunking = errors.New("chunking failed")

	// ErrInvalidChunkConfig indicates a chunker configuration that cannot
	// terminate, such as an overlap not smaller than the chunk size.
	ErrInvalidChunkConfig = fmt.Errorf("%w: invalid chunk configuration", ErrChunking)

	// ErrUnsupportedMIMEType indicates no normaliser handles the media type.
	ErrUnsupportedMIMEType = fmt.Errorf("%w: unsupported mime type", ErrChunking)

	// ErrEmbeddingUnavailable indicates the embedding provider could not
	// produce a vector, either permanently or after retries were exhausted.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrDuplicateChunk indicates a (document, page) pair already exists.
	ErrDuplicateChunk = errors.New("duplicate chunk")

	// ErrNotFound indicates a requested entity does not exist for the owner.
	// A document owned by someone else is reported the same way.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable indicates a transaction or connection failure.
	// The transaction has been rolled back when this is returned.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Provider Errors.

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderTimeout indicates the provider did not answer in time.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrAuthFailed indicates the provider rejected the credentials.
	ErrAuthFailed = errors.New("authentication failed")
)

// ProviderError describes a failed call to an external provider.
type ProviderError struct {
	// Provider names the service, e.g. "openai".
	Provider string

	// StatusCode is the HTTP status, zero when the request never completed.
	StatusCode int

	// RetryAfter is the delay the provider asked for, if any.
	RetryAfter time.Duration

	// Message is the provider's error text.
	Message string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap maps the status code onto the matching sentinel.
func (e *ProviderError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrAuthFailed
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusGatewayTimeout:
		return ErrProviderTimeout
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return ErrInvalidInput
	}
	return nil
}

// IsTransient reports whether err is worth retrying.
// Rate limits, timeouts and server-side failures are transient;
// everything else, including caller cancellation, is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.StatusCode == 0 || perr.StatusCode >= 500
	}
	return false
}

// RetryAfter extracts a provider's retry hint from err.
func RetryAfter(err error) (time.Duration, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.RetryAfter > 0 {
		return perr.RetryAfter, true
	}
	return 0, false
}
