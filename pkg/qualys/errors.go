package qualys

import (
	"errors"
	"fmt"
)

// Kind classifies why an API call could not produce a usable response.
type Kind int

const (
	// KindNoRedirect: non-200 response carrying no redirect target.
	KindNoRedirect Kind = iota + 1
	// KindRedirectFailed: the single redirect hop did not return 200.
	KindRedirectFailed
	// KindSchemaMismatch: 200 response whose body is not the expected envelope.
	KindSchemaMismatch
	// KindRejected: well-formed response in which Qualys reports an error code.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindNoRedirect:
		return "no_redirect"
	case KindRedirectFailed:
		return "redirect_failed"
	case KindSchemaMismatch:
		return "schema_mismatch"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ExitCode is the process exit status the command line reports for k.
func (k Kind) ExitCode() int {
	switch k {
	case KindNoRedirect:
		return 2
	case KindRedirectFailed:
		return 3
	case KindSchemaMismatch:
		return 4
	case KindRejected:
		return 5
	default:
		return 1
	}
}

// APIError is returned by every Session call that fails.
type APIError struct {
	Kind       Kind
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *APIError) Error() string {
	var msg string
	switch e.Kind {
	case KindNoRedirect:
		msg = fmt.Sprintf("FATAL: Could not make API call to %s", e.Op)
	case KindRedirectFailed:
		msg = fmt.Sprintf("FATAL: Could not make API call to %s following redirect", e.Op)
	case KindSchemaMismatch:
		msg = fmt.Sprintf("FATAL: Unexpected response schema from API call to %s", e.Op)
	case KindRejected:
		msg = fmt.Sprintf("FATAL: API call to %s was rejected", e.Op)
	default:
		msg = fmt.Sprintf("FATAL: API call to %s failed", e.Op)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// IsKind reports whether err wraps an APIError of kind k.
func IsKind(err error, k Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == k
}

// ExitCode maps err to a process exit status; errors that are not
// APIErrors map to 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind.ExitCode()
	}
	return 1
}
