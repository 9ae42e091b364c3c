package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can react without string matching
type Kind string

const (
	// KindSetupFailure means the browser or its context could not be built.
	// It is the only kind allowed to propagate as a fatal error.
	KindSetupFailure Kind = "setup_failure"
	// KindAuthExpired means an operation was redirected to the login surface
	KindAuthExpired Kind = "auth_expired"
	// KindElementNotFound means no candidate of a selector set appeared in time
	KindElementNotFound Kind = "element_not_found"
	// KindUnconfirmedOutcome means the action ran but its success signal never showed
	KindUnconfirmedOutcome Kind = "unconfirmed_outcome"
	// KindUnsupportedChallenge means the site asked for something we do not automate
	KindUnsupportedChallenge Kind = "unsupported_challenge"
	// KindValidation means a precondition failed before any navigation
	KindValidation Kind = "validation_error"
	// KindAuthFailed means the site rejected the submitted credentials
	KindAuthFailed Kind = "auth_failed"
	// KindNavigation means the page could not be loaded
	KindNavigation Kind = "navigation"

	KindNetwork     Kind = "network"
	KindRateLimit   Kind = "rate_limit"
	KindNotFound    Kind = "not_found"
	KindServerError Kind = "server_error"
	KindParsing     Kind = "parsing"
	KindFileSystem  Kind = "filesystem"
	KindUnknown     Kind = "unknown"
)

// Error is a classified failure
type Error struct {
	Kind    Kind
	Message string
	// Op names the operation that failed, when there is one
	Op string
	// Selectors lists the candidates tried for ElementNotFound
	Selectors []string
	// Code carries an HTTP status for fetch errors
	Code  int
	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Selectors) > 0 {
		fmt.Fprintf(&b, " [tried %s]", strings.Join(e.Selectors, " | "))
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// WithOp returns a copy tagged with the operation name
func (e *Error) WithOp(op string) *Error {
	c := *e
	c.Op = op
	return &c
}

// KindOf returns the kind of the first classified error in the chain
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As is a convenience around errors.As for *Error
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrors.As(err, &e)
	return e, ok
}

// IsRetryable checks if an error kind should be retried
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindRateLimit, KindServerError, KindNavigation, KindElementNotFound:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0:
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// KindForStatus maps an HTTP status code to a kind
func KindForStatus(statusCode int) Kind {
	switch {
	case statusCode == 429:
		return KindRateLimit
	case statusCode == 404:
		return KindNotFound
	case statusCode == 401 || statusCode == 403:
		return KindAuthExpired
	case statusCode >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}
