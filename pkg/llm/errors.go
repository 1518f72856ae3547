package llm

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindRateLimited  ErrorKind = "rate_limited"
	KindUnavailable  ErrorKind = "unavailable"
	KindGeneric      ErrorKind = "generic"
)

// ProviderError reports a failed provider call. The orchestrator does
// not retry these; they surface as a failed extraction result.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int // 0 when no HTTP status was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status to an error kind.
func classifyStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindUnavailable
	default:
		return KindGeneric
	}
}

// newProviderError builds a classified ProviderError from an HTTP
// status and underlying error.
func newProviderError(provider string, status int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       classifyStatus(status),
		StatusCode: status,
		Err:        err,
	}
}
