package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrInvalidMetadata", ErrInvalidMetadata},
		{"ErrChunking", ErrChunking},
		{"ErrInvalidChunkConfig", ErrInvalidChunkConfig},
		{"ErrUnsupportedMIMEType", ErrUnsupportedMIMEType},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrDuplicateChunk", ErrDuplicateChunk},
		{"ErrNotFound", ErrNotFound},
		{"ErrStorageUnavailable", ErrStorageUnavailable},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrProviderTimeout", ErrProviderTimeout},
		{"ErrAuthFailed", ErrAuthFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestChunkingErrors_WrapErrChunking(t *testing.T) {
	assert.ErrorIs(t, ErrInvalidChunkConfig, ErrChunking)
	assert.ErrorIs(t, ErrUnsupportedMIMEType, ErrChunking)
	assert.NotErrorIs(t, ErrInvalidChunkConfig, ErrUnsupportedMIMEType)
}

func TestProviderError_Unwrap(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusUnauthorized, ErrAuthFailed},
		{http.StatusForbidden, ErrAuthFailed},
		{http.StatusGatewayTimeout, ErrProviderTimeout},
		{http.StatusBadRequest, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := fmt.Errorf("embedding: %w", &ProviderError{Provider: "openai", StatusCode: tt.status})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Nil(t, (&ProviderError{StatusCode: http.StatusInternalServerError}).Unwrap())
}

func TestProviderError_Error(t *testing.T) {
	assert.Equal(t, "openai: status 500: boom",
		(&ProviderError{Provider: "openai", StatusCode: 500, Message: "boom"}).Error())
	assert.Equal(t, "ollama: connection refused",
		(&ProviderError{Provider: "ollama", Message: "connection refused"}).Error())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", ErrRateLimited, true},
		{"timeout sentinel", ErrProviderTimeout, true},
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"status 429", &ProviderError{StatusCode: 429}, true},
		{"status 503", &ProviderError{StatusCode: 503}, true},
		{"network failure", &ProviderError{Message: "dial tcp"}, true},
		{"status 400", &ProviderError{StatusCode: 400}, false},
		{"status 401", &ProviderError{StatusCode: 401}, false},
		{"plain error", errors.New("bad"), false},
		{"wrapped 502", fmt.Errorf("call: %w", &ProviderError{StatusCode: 502}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetryAfter(t *testing.T) {
	d, ok := RetryAfter(fmt.Errorf("x: %w", &ProviderError{StatusCode: 429, RetryAfter: 2 * time.Second}))
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	_, ok = RetryAfter(ErrRateLimited)
	assert.False(t, ok)
}
