// Package errors provides structured error handling for semidx.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file read, stat, hashing)
//   - 3XX: Embedding provider errors
//   - 4XX: Validation errors
//   - 5XX: Storage errors (transactions, corrupt rows)
//   - 6XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryEmbeddingProvider indicates a failure of the external embedding service.
	CategoryEmbeddingProvider Category = "EMBEDDING_PROVIDER"
	// CategoryValidation indicates caller bugs such as bad chunking parameters.
	CategoryValidation Category = "VALIDATION"
	// CategoryStorage indicates transaction, commit or row decoding failures.
	CategoryStorage Category = "STORAGE"
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
	// SeverityWarning indicates a transient failure worth retrying.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeFileRead       = "ERR_203_FILE_READ"
	ErrCodeBinaryContent  = "ERR_204_BINARY_CONTENT"
	ErrCodeLockHeld       = "ERR_205_LOCK_HELD"

	// Embedding provider errors (300-399)
	ErrCodeEmbeddingFailed     = "ERR_301_EMBEDDING_FAILED"
	ErrCodeProviderUnavailable = "ERR_302_PROVIDER_UNAVAILABLE"
	ErrCodeProviderTimeout     = "ERR_303_PROVIDER_TIMEOUT"
	ErrCodeProviderResponse    = "ERR_304_PROVIDER_BAD_RESPONSE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidChunking   = "ERR_403_INVALID_CHUNKING"
	ErrCodeQueryEmpty        = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidMetadata   = "ERR_405_INVALID_METADATA"
	ErrCodeInvalidPath       = "ERR_406_INVALID_PATH"

	// Storage errors (500-599)
	ErrCodeStorage      = "ERR_501_STORAGE"
	ErrCodeTransaction  = "ERR_502_TRANSACTION_FAILED"
	ErrCodeCorruptRow   = "ERR_503_CORRUPT_ROW"
	ErrCodeStorageOpen  = "ERR_504_STORAGE_OPEN"
	ErrCodeCorruptIndex = "ERR_505_CORRUPT_INDEX"

	// Internal errors (600-699)
	ErrCodeInternal = "ERR_601_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "1" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryEmbeddingProvider
	case '4':
		return CategoryValidation
	case '5':
		return CategoryStorage
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeStorageOpen:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode reports whether a caller may retry after the failure.
// IO errors are retryable once the file is fixed, provider errors with
// backoff, and storage errors because the transaction was rolled back.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeStorageOpen, ErrCodeBinaryContent:
		return false
	}
	switch categoryFromCode(code) {
	case CategoryIO, CategoryEmbeddingProvider, CategoryStorage:
		return true
	default:
		return false
	}
}
