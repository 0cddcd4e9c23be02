package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	original := stderrors.New("disk full")

	// When: wrapping it as a storage error
	err := StorageError("commit failed", original)

	// Then: the chain still reaches the original
	require.NotNil(t, err)
	assert.Equal(t, original, stderrors.Unwrap(err))
	assert.True(t, stderrors.Is(err, original))
}

func TestIndexError_Error_IncludesCodeAndCause(t *testing.T) {
	tests := []struct {
		name     string
		err      *IndexError
		expected string
	}{
		{
			name:     "no cause",
			err:      New(ErrCodeInvalidChunking, "overlap must be smaller than chunk size", nil),
			expected: "[ERR_403_INVALID_CHUNKING] overlap must be smaller than chunk size",
		},
		{
			name:     "with cause",
			err:      IOError("read a.txt", stderrors.New("permission denied")),
			expected: "[ERR_203_FILE_READ] read a.txt: permission denied",
		},
		{
			name:     "wrapped cause is not repeated",
			err:      Wrap(ErrCodeStorage, stderrors.New("database is locked")),
			expected: "[ERR_501_STORAGE] database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestIndexError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeDimensionMismatch, "got 3 want 4", nil)
	err2 := New(ErrCodeDimensionMismatch, "got 5 want 4", nil)
	err3 := New(ErrCodeInvalidChunking, "bad overlap", nil)

	assert.True(t, stderrors.Is(err1, err2))
	assert.False(t, stderrors.Is(err1, err3))
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryIO},
		{ErrCodeEmbeddingFailed, CategoryEmbeddingProvider},
		{ErrCodeProviderTimeout, CategoryEmbeddingProvider},
		{ErrCodeInvalidChunking, CategoryValidation},
		{ErrCodeCorruptRow, CategoryStorage},
		{ErrCodeInternal, CategoryInternal},
		{"BAD", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, categoryFromCode(tt.code))
		})
	}
}

func TestConstructors_MapToErrorKinds(t *testing.T) {
	tests := []struct {
		name          string
		err           *IndexError
		wantCategory  Category
		wantRetryable bool
	}{
		{"validation", ValidationError("bad", nil), CategoryValidation, false},
		{"io", IOError("bad", nil), CategoryIO, true},
		{"provider", EmbeddingProviderError("bad", nil), CategoryEmbeddingProvider, true},
		{"storage", StorageError("bad", nil), CategoryStorage, true},
		{"config", ConfigError("bad", nil), CategoryConfig, false},
		{"internal", InternalError("bad", nil), CategoryInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCategory, tt.err.Category)
			assert.Equal(t, tt.wantRetryable, tt.err.Retryable)
		})
	}
}

func TestSeverityFromCode(t *testing.T) {
	assert.Equal(t, SeverityFatal, New(ErrCodeCorruptIndex, "x", nil).Severity)
	assert.Equal(t, SeverityWarning, New(ErrCodeProviderTimeout, "x", nil).Severity)
	assert.Equal(t, SeverityError, New(ErrCodeInvalidInput, "x", nil).Severity)
}

func TestIsCategory_WalksWrapChain(t *testing.T) {
	// Given: a storage error wrapped by fmt.Errorf
	err := fmt.Errorf("index a.txt: %w", StorageError("commit failed", nil))

	// Then: helpers see through the wrapping
	assert.True(t, IsCategory(err, CategoryStorage))
	assert.False(t, IsCategory(err, CategoryIO))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrCodeStorage, GetCode(err))
	assert.Equal(t, CategoryStorage, GetCategory(err))
	assert.Empty(t, GetCode(stderrors.New("plain")))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := IOError("cannot read", nil).
		WithDetail("path", "/tmp/a.txt").
		WithSuggestion("check file permissions")

	assert.Equal(t, "/tmp/a.txt", err.Details["path"])
	assert.Equal(t, "check file permissions", err.Suggestion)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	calls := 0

	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return EmbeddingProviderError("timeout", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnNonRetryableError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: time.Millisecond, Multiplier: 2}
	calls := 0

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return ValidationError("bad input", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsCategory(err, CategoryValidation))
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, Multiplier: 1}
	calls := 0

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return EmbeddingProviderError("down", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.True(t, IsCategory(err, CategoryEmbeddingProvider))
}

func TestRetryWithResult_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 10, InitialDelay: time.Hour, Multiplier: 1}

	_, err := RetryWithResult(ctx, cfg, func() (int, error) {
		cancel()
		return 0, EmbeddingProviderError("down", nil)
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatForCLI(t *testing.T) {
	err := StorageError("commit failed", stderrors.New("disk I/O error")).
		WithSuggestion("retry the operation")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: commit failed")
	assert.Contains(t, out, "Cause: disk I/O error")
	assert.Contains(t, out, "Hint: retry the operation")
	assert.Contains(t, out, "Code: ERR_501_STORAGE")
	assert.Contains(t, FormatForCLI(stderrors.New("boom")), "ERR_601_INTERNAL")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON(t *testing.T) {
	data, err := FormatJSON(EmbeddingProviderError("ollama unreachable", nil))
	require.NoError(t, err)

	assert.Contains(t, string(data), `"code":"ERR_301_EMBEDDING_FAILED"`)
	assert.Contains(t, string(data), `"category":"EMBEDDING_PROVIDER"`)
	assert.Contains(t, string(data), `"retryable":true`)
}

func TestFormatForLog(t *testing.T) {
	fields := FormatForLog(IOError("gone", nil).WithDetail("path", "a.txt"))

	assert.Equal(t, ErrCodeFileRead, fields["error_code"])
	assert.Equal(t, "a.txt", fields["detail_path"])
	assert.Equal(t, map[string]any{"error": "plain"}, FormatForLog(stderrors.New("plain")))
}
