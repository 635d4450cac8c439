package llm

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies a provider failure so the retry wrapper and
// the agent runtime can react without depending on provider-specific
// error types.
type ErrorCategory int

const (
	CategoryUnknown ErrorCategory = iota
	CategoryAuth
	CategoryRateLimit
	CategoryInvalidRequest
	CategoryNotFound
	CategoryServer
	CategoryNetwork
	CategoryCancelled
	CategoryInputLimit
	CategoryContentFiltered
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryAuth:
		return "Auth"
	case CategoryRateLimit:
		return "RateLimit"
	case CategoryInvalidRequest:
		return "InvalidRequest"
	case CategoryNotFound:
		return "NotFound"
	case CategoryServer:
		return "Server"
	case CategoryNetwork:
		return "Network"
	case CategoryCancelled:
		return "Cancelled"
	case CategoryInputLimit:
		return "InputLimit"
	case CategoryContentFiltered:
		return "ContentFiltered"
	default:
		return "Unknown"
	}
}

// CategorizedError is an error that also reports which ErrorCategory it
// belongs to.
type CategorizedError interface {
	error
	Category() ErrorCategory
}

// IsCategorizedError reports whether err (or something it wraps)
// implements CategorizedError.
func IsCategorizedError(err error) (CategorizedError, bool) {
	if err == nil {
		return nil, false
	}
	var catErr CategorizedError
	if errors.As(err, &catErr) {
		return catErr, true
	}
	return nil, false
}

// IsCategory reports whether err is categorized as cat.
func IsCategory(err error, cat ErrorCategory) bool {
	catErr, ok := IsCategorizedError(err)
	return ok && catErr.Category() == cat
}

// providerError is the concrete CategorizedError implementation every
// provider client wraps its failures in.
type providerError struct {
	provider string
	message  string
	category ErrorCategory
	wait     *float64 // suggested retry wait, in seconds; only set for CategoryRateLimit
	cause    error
}

func (e *providerError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.provider, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.provider, e.message)
}

func (e *providerError) Unwrap() error { return e.cause }

func (e *providerError) Category() ErrorCategory { return e.category }

// RetryAfterSeconds returns the provider's suggested wait duration for a
// rate-limit error, if one was parsed from its response.
func (e *providerError) RetryAfterSeconds() (float64, bool) {
	if e.wait == nil {
		return 0, false
	}
	return *e.wait, true
}

// Wrap wraps cause as a CategorizedError attributed to provider.
func Wrap(cause error, provider, message string, category ErrorCategory) error {
	return &providerError{provider: provider, message: message, category: category, cause: cause}
}

// WrapRateLimit wraps cause as a CategoryRateLimit error carrying the
// provider's suggested wait duration, in seconds.
func WrapRateLimit(cause error, provider, message string, waitSeconds float64) error {
	w := waitSeconds
	return &providerError{provider: provider, message: message, category: CategoryRateLimit, cause: cause, wait: &w}
}

// RetryAfterSeconds extracts the suggested wait duration from err, if it
// is (or wraps) a rate-limit providerError carrying one.
func RetryAfterSeconds(err error) (float64, bool) {
	var rl interface{ RetryAfterSeconds() (float64, bool) }
	if errors.As(err, &rl) {
		return rl.RetryAfterSeconds()
	}
	return 0, false
}

// ErrNoModelResponse is returned by the retry wrapper when every retry
// attempt is exhausted without a successful response.
var ErrNoModelResponse = errors.New("no_model_response")
