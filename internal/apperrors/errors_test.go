package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
		severity Severity
		retry    bool
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{"corrupt index", ErrCodeCorruptIndex, CategoryIO, SeverityFatal, false},
		{"embedding", ErrCodeEmbeddingUnavailable, CategoryProvider, SeverityError, true},
		{"retrieval", ErrCodeRetrievalUnavailable, CategoryProvider, SeverityFatal, false},
		{"rerank", ErrCodeRerankProvider, CategoryProvider, SeverityWarning, true},
		{"query empty", ErrCodeQueryEmpty, CategoryValidation, SeverityError, false},
		{"filter depth", ErrCodeFilterTooComplex, CategoryValidation, SeverityError, false},
		{"internal", ErrCodeInternal, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.code, "message", nil)
			assert.Equal(t, tt.category, e.Category)
			assert.Equal(t, tt.severity, e.Severity)
			assert.Equal(t, tt.retry, e.Retryable)
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	e := EmbeddingUnavailable(cause)

	require.ErrorIs(t, e, cause)
	assert.Equal(t, cause, e.Unwrap())
}

func TestError_IsMatchesByCode(t *testing.T) {
	e := fmt.Errorf("wrapped: %w", QueryEmpty())

	assert.True(t, errors.Is(e, QueryEmpty()))
	assert.False(t, errors.Is(e, FilterTooComplex(40, 32)))
}

func TestError_WithDetail(t *testing.T) {
	e := New(ErrCodeSearchFailed, "search failed", nil).
		WithDetail("query", "list users").
		WithDetail("stage", "fused")

	assert.Equal(t, "list users", e.Details["query"])
	assert.Equal(t, "fused", e.Details["stage"])
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(RetrievalUnavailable(nil)))
	assert.False(t, IsFatal(EmbeddingUnavailable(nil)))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeQueryEmpty, GetCode(QueryEmpty()))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}
