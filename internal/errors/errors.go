package errors

import (
	"errors"
	"fmt"
)

// SearchError is the structured error type for skuseek.
// It carries a stable code so callers can branch on failure kind without
// string matching, and enough context for logging.
type SearchError struct {
	// Code is the unique error code (e.g., "ERR_301_RETRIEVAL_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Retrieval, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Source names the retrieval source that produced the error
	// ("semantic", "keyword"), empty when not source-specific.
	Source string

	// Cause is the underlying error that caused this error.
	Cause error

	// Recoverable indicates the orchestrator may degrade instead of failing.
	Recoverable bool
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Source, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, enabling errors.Is with sentinel instances.
func (e *SearchError) Is(target error) bool {
	if t, ok := target.(*SearchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithSource records the retrieval source that produced the error.
func (e *SearchError) WithSource(source string) *SearchError {
	e.Source = source
	return e
}

// New creates a SearchError with the given code and message.
// Category, severity, and recoverability are derived from the code.
func New(code string, message string, cause error) *SearchError {
	return &SearchError{
		Code:        code,
		Message:     message,
		Category:    categoryFromCode(code),
		Severity:    severityFromCode(code),
		Cause:       cause,
		Recoverable: isRecoverableCode(code),
	}
}

// Wrap creates a SearchError from an existing error.
func Wrap(code string, err error) *SearchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidQuery creates a contract-violation error for malformed queries.
// These indicate a bug in the upstream query-understanding collaborator,
// not a runtime condition to degrade around.
func InvalidQuery(message string) *SearchError {
	return New(ErrCodeInvalidQuery, message, nil)
}

// RetrievalTimeout creates an error for a source that exceeded its budget.
func RetrievalTimeout(source string, cause error) *SearchError {
	return New(ErrCodeRetrievalTimeout, "retrieval timed out", cause).WithSource(source)
}

// RetrievalFailure creates an error for a backend failure.
func RetrievalFailure(source string, cause error) *SearchError {
	return New(ErrCodeRetrievalFailure, "retrieval failed", cause).WithSource(source)
}

// BothSourcesFailed creates the terminal error for a hybrid request where
// neither source produced candidates.
func BothSourcesFailed(semanticErr, keywordErr error) *SearchError {
	return New(ErrCodeBothSourcesFailed, "all retrieval sources failed",
		errors.Join(semanticErr, keywordErr))
}

// IsRecoverable checks if an error may be absorbed into degradation.
func IsRecoverable(err error) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Recoverable
	}
	return false
}

// GetCode extracts the error code, or empty string for foreign errors.
func GetCode(err error) string {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
