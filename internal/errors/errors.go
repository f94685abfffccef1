// Package errors defines the failure taxonomy of the sync engine and the
// categorized error type shared by the pipeline and the API layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/game-sync-engine/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategorySkip represents a bad or missing identifier. Not a sync
	// failure; the record is excluded and counted as skipped.
	CategorySkip ErrorCategory = "skip"
	// CategoryTransient represents rate limits, timeouts, and network
	// blips. Retried with backoff; may still fail after retries.
	CategoryTransient ErrorCategory = "transient"
	// CategoryPartial represents a per-game enrichment failure. Recorded,
	// the batch continues.
	CategoryPartial ErrorCategory = "partial"
	// CategoryTerminalEndpoint means the indexer reports the endpoint
	// itself is gone. Surfaced immediately, never retried.
	CategoryTerminalEndpoint ErrorCategory = "terminal_endpoint"
	// CategoryConfig represents a missing endpoint or contract address
	// for a chain. No partial work is attempted.
	CategoryConfig ErrorCategory = "config"
	// CategoryDatabase represents persistence failures.
	CategoryDatabase ErrorCategory = "database"
	// CategoryValidation represents invalid API input.
	CategoryValidation ErrorCategory = "validation"
)

// CategorizedError carries a category, an API status code, and a cause.
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to the API error shape.
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewMissingChainConfigError reports a chain with no usable configuration.
func NewMissingChainConfigError(chainID types.ChainID, what string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConfig,
		StatusCode: http.StatusBadRequest,
		Code:       "CHAIN_NOT_CONFIGURED",
		Message:    fmt.Sprintf("chain %d has no %s configured", chainID, what),
		Details: map[string]interface{}{
			"chainId": chainID,
			"missing": what,
		},
	}
}

// NewEndpointRemovedError reports that the indexer endpoint no longer
// exists. Terminal: retrying cannot help.
func NewEndpointRemovedError(chainID types.ChainID, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryTerminalEndpoint,
		StatusCode: http.StatusBadGateway,
		Code:       "INDEXER_ENDPOINT_REMOVED",
		Message:    fmt.Sprintf("indexer endpoint for chain %d has been removed", chainID),
		Details: map[string]interface{}{
			"chainId": chainID,
		},
		Cause: cause,
	}
}

// NewValidationError reports invalid API input.
func NewValidationError(param, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewDatabaseError wraps a persistence failure.
func NewDatabaseError(op string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database operation failed: %s", op),
		Cause:      cause,
	}
}

// CategoryOf returns the category of err, or an empty category when err is
// not categorized.
func CategoryOf(err error) ErrorCategory {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// IsTerminal reports whether err is terminal for the whole sync call:
// either the indexer endpoint is gone or the chain is misconfigured.
func IsTerminal(err error) bool {
	cat := CategoryOf(err)
	return cat == CategoryTerminalEndpoint || cat == CategoryConfig
}
