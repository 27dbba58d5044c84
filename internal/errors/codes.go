// Package errors provides structured error handling for tradesearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage and index errors
//   - 3XX: External provider errors (embedding, rerank)
//   - 4XX: Validation and precondition errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates catalog, chunk store, or index errors.
	CategoryStorage Category = "STORAGE"
	// CategoryProvider indicates external embedding/rerank provider errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryValidation indicates input validation or precondition errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeCatalogUnavailable = "ERR_201_CATALOG_UNAVAILABLE"
	ErrCodeCorruptIndex       = "ERR_202_CORRUPT_INDEX"
	ErrCodeChunkStore         = "ERR_203_CHUNK_STORE"
	ErrCodeSettingsStore      = "ERR_204_SETTINGS_STORE"

	// Provider errors (300-399): always recovered locally, never
	// surfaced from a search call.
	ErrCodeEmbedUnavailable  = "ERR_301_EMBED_UNAVAILABLE"
	ErrCodeRerankUnavailable = "ERR_302_RERANK_UNAVAILABLE"
	ErrCodeRerankTimeout     = "ERR_303_RERANK_TIMEOUT"
	ErrCodeRerankShape       = "ERR_304_RERANK_SHAPE"

	// Validation errors (400-499)
	ErrCodeEntityNotFound = "ERR_401_ENTITY_NOT_FOUND"
	ErrCodeInvalidInput   = "ERR_402_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode derives the category from the numeric range of a code.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryProvider
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from the code.
// Provider failures are warnings: the engine degrades and keeps serving.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryProvider:
		return SeverityWarning
	case CategoryConfig:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code may be retried.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbedUnavailable, ErrCodeRerankUnavailable, ErrCodeRerankTimeout:
		return true
	default:
		return false
	}
}
