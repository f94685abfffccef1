package chainreader

import (
	"context"
	"errors"
	"strings"
)

// ErrorClass buckets provider failures for the retry loop.
type ErrorClass int

const (
	// ClassRetryable covers network blips, timeouts, and server errors.
	ClassRetryable ErrorClass = iota
	// ClassRateLimited covers 429-style throttling responses.
	ClassRateLimited
	// ClassFatal covers errors a retry cannot fix (reverts, ABI
	// mismatches, cancelled contexts).
	ClassFatal
)

var rateLimitMarkers = []string{
	"429",
	"rate limit",
	"too many requests",
	"exceeded",
	"throttl",
	"capacity",
}

var fatalMarkers = []string{
	"execution reverted",
	"invalid opcode",
	"abi:",
	"method not found",
	"invalid argument",
}

// Classify assigns an error to a retry class. Providers do not agree on
// error shapes, so this is substring inspection like everything else that
// talks to public RPC endpoints.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassRetryable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassFatal
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return ClassRateLimited
		}
	}
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return ClassFatal
		}
	}
	return ClassRetryable
}

// IsRateLimitError reports whether an error indicates throttling.
func IsRateLimitError(err error) bool {
	return err != nil && Classify(err) == ClassRateLimited
}
