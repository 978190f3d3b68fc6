package provider

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure. The taxonomy is closed: every error
// surfaced by the client carries exactly one of these kinds.
type Kind string

const (
	// KindInvalid represents a definitive provider rejection (400 and other
	// unmapped 4xx, whose original status is passed through).
	KindInvalid Kind = "invalid"

	// KindNotFound means the provider does not know the requested symbol.
	KindNotFound Kind = "not_found"

	// KindAuthFailed means the provider rejected the gateway's credentials.
	// It is masked as a generic unavailability at the transport boundary.
	KindAuthFailed Kind = "auth_failed"

	// KindUnavailable represents provider 5xx failures after retries.
	KindUnavailable Kind = "unavailable"

	// KindTimeout represents connection or timeout failures after retries.
	KindTimeout Kind = "timeout"

	// KindParseFailure means the 2xx response body failed validation.
	KindParseFailure Kind = "parse_failure"
)

// ErrRetryExhausted is wrapped into errors returned after the final attempt.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// Error is a classified upstream failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s error (status %d): %s: %v",
			e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("provider %s error (status %d): %s",
		e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStatus maps a non-2xx provider status to an error kind.
func classifyStatus(status int) Kind {
	switch {
	case status == 400:
		return KindInvalid
	case status == 401:
		return KindAuthFailed
	case status == 404:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindInvalid
	default:
		return KindUnavailable
	}
}

// retryable reports whether a failure of this kind may be retried.
// Definitive 4xx rejections never are; server and network failures are.
func retryable(kind Kind) bool {
	switch kind {
	case KindUnavailable, KindTimeout:
		return true
	default:
		return false
	}
}
