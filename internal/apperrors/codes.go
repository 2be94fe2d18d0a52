// Package apperrors provides structured error handling for apidex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (index files, disk)
//   - 3XX: Provider/network errors
//   - 4XX: Validation errors (client input)
//   - 5XX: Internal errors
package apperrors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryProvider indicates external provider errors (embedding, rerank, expansion).
	CategoryProvider Category = "PROVIDER"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeCorruptIndex = "ERR_201_CORRUPT_INDEX"
	ErrCodeIndexLocked  = "ERR_202_INDEX_LOCKED"

	// Provider errors (300-399)
	ErrCodeEmbeddingUnavailable    = "ERR_301_EMBEDDING_UNAVAILABLE"
	ErrCodeKeywordIndexUnavailable = "ERR_302_KEYWORD_INDEX_UNAVAILABLE"
	ErrCodeRetrievalUnavailable    = "ERR_303_RETRIEVAL_UNAVAILABLE"
	ErrCodeRerankProvider          = "ERR_304_RERANK_PROVIDER"
	ErrCodeExpansionProvider       = "ERR_305_EXPANSION_PROVIDER"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty        = "ERR_402_QUERY_EMPTY"
	ErrCodeFilterTooComplex  = "ERR_403_FILTER_TOO_COMPLEX"
	ErrCodeInvalidFilter     = "ERR_404_INVALID_FILTER"
	ErrCodeDimensionMismatch = "ERR_405_DIMENSION_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
	ErrCodeIndexFailed  = "ERR_503_INDEX_FAILED"
	ErrCodeCancelled    = "ERR_504_CANCELLED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryProvider
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeRetrievalUnavailable:
		return SeverityFatal
	case ErrCodeRerankProvider, ErrCodeExpansionProvider:
		// Fail-open degradations: the request continues with reduced quality.
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingUnavailable, ErrCodeKeywordIndexUnavailable,
		ErrCodeRerankProvider, ErrCodeExpansionProvider:
		return true
	default:
		return false
	}
}
