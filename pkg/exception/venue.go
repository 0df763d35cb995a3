package exception

import (
	"errors"
	"strings"
)

// Venue order errors, classified so the controller never inspects raw
// response strings.
var (
	ErrOrderGone              = errors.New("order: not found or already gone")
	ErrReduceOnlyNoPosition   = errors.New("order: reduce-only with no matching position")
	ErrOrderRejected          = errors.New("order: rejected by venue")
	ErrEmptyResponseOrderID   = errors.New("order: empty response order id")
	ErrDecodeResponseBody     = errors.New("order: decode response body")
	ErrRequestFailed          = errors.New("venue: request failed")
	ErrSymbolRulesNotFound    = errors.New("venue: symbol rules not found")
	ErrAccountDataUnavailable = errors.New("venue: account data unavailable")
)

// IsGone reports whether a cancel failed only because the order no
// longer exists. Treated as success by callers.
func IsGone(err error) bool {
	return errors.Is(err, ErrOrderGone)
}

// IsReduceOnlyReject reports a reduce-only rejection caused by a
// desynchronized local position.
func IsReduceOnlyReject(err error) bool {
	return errors.Is(err, ErrReduceOnlyNoPosition)
}

// ClassifyOrderError maps a venue error payload onto a sentinel. The
// status code and message shapes follow the venue's REST responses.
func ClassifyOrderError(statusCode int, message string) error {
	lower := strings.ToLower(message)
	switch {
	case statusCode == 422 || strings.Contains(lower, "no position found"):
		return ErrReduceOnlyNoPosition
	case statusCode == 404,
		strings.Contains(lower, "order not found"),
		strings.Contains(lower, "already cancelled"),
		strings.Contains(lower, "already canceled"):
		return ErrOrderGone
	default:
		return ErrOrderRejected
	}
}
