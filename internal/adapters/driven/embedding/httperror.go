// Package embedding holds helpers shared by the embedding provider adapters.
//
// The adapters make exactly one attempt per call. They translate HTTP
// failures into *domain.ProviderError so that the resilient client can
// tell transient failures from permanent ones.
package embedding

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// StatusError builds a provider error from a non-2xx response.
// The Retry-After header is honoured in both its seconds and HTTP-date forms.
func StatusError(provider string, resp *http.Response, body []byte) error {
	if body == nil && resp.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &domain.ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		Message:    strings.TrimSpace(string(body)),
	}
}

// TransportError wraps a failure to complete the HTTP exchange.
// Caller cancellation is passed through untouched.
func TransportError(provider string, err error) error {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return err
	}
	return &transportError{ProviderError: domain.ProviderError{Provider: provider, Message: err.Error()}, cause: err}
}

type transportError struct {
	domain.ProviderError
	cause error
}

func (e *transportError) Error() string { return e.ProviderError.Error() }

// Unwrap exposes both the provider error and the underlying cause so that
// errors.Is(err, context.Canceled) keeps working.
func (e *transportError) Unwrap() []error {
	return []error{&e.ProviderError, e.cause}
}

// ParseRetryAfter converts a Retry-After header value to a duration.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
