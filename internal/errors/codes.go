// Package errors provides structured error handling for skuseek.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index and storage errors
//   - 3XX: Retrieval errors (timeouts, backend failures)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates index and catalog storage errors.
	CategoryStorage Category = "STORAGE"
	// CategoryRetrieval indicates retrieval backend errors.
	CategoryRetrieval Category = "RETRIEVAL"
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

	// Index and storage errors (200-299)
	ErrCodeIndexUnavailable = "ERR_201_INDEX_UNAVAILABLE"
	ErrCodeCorruptIndex     = "ERR_202_CORRUPT_INDEX"
	ErrCodeCatalogStore     = "ERR_203_CATALOG_STORE"
	ErrCodeSnapshotNotFound = "ERR_204_SNAPSHOT_NOT_FOUND"

	// Retrieval errors (300-399)
	ErrCodeRetrievalTimeout  = "ERR_301_RETRIEVAL_TIMEOUT"
	ErrCodeRetrievalFailure  = "ERR_302_RETRIEVAL_FAILURE"
	ErrCodeBothSourcesFailed = "ERR_303_BOTH_SOURCES_FAILED"
	ErrCodeEmbeddingFailed   = "ERR_304_EMBEDDING_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidQuery      = "ERR_401_INVALID_QUERY"
	ErrCodeQueryEmpty        = "ERR_402_QUERY_EMPTY"
	ErrCodeMissingVector     = "ERR_403_MISSING_VECTOR"
	ErrCodeInvalidFilter     = "ERR_404_INVALID_FILTER"
	ErrCodeDimensionMismatch = "ERR_405_DIMENSION_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
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
		return CategoryStorage
	case '3':
		return CategoryRetrieval
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeRetrievalTimeout, ErrCodeRetrievalFailure, ErrCodeIndexUnavailable:
		// Single-source failures degrade the result, they do not abort it.
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRecoverableCode reports whether a code represents a failure the
// orchestrator absorbs via single-source degradation.
func isRecoverableCode(code string) bool {
	switch code {
	case ErrCodeRetrievalTimeout, ErrCodeRetrievalFailure, ErrCodeIndexUnavailable, ErrCodeEmbeddingFailed:
		return true
	default:
		return false
	}
}
