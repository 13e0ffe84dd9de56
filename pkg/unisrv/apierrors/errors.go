package apierrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrAuthenticationExpired = errors.New("authentication expired, please log in again")
	ErrNotFound              = errors.New("not found")
	ErrAmbiguousReference    = errors.New("ambiguous reference")
	ErrValidation            = errors.New("validation failed")
	ErrServiceUnavailable    = errors.New("service unavailable")
	ErrNetworkTimeout        = errors.New("network timeout")
)

// HTTPError is a non-2xx response from the provisioning API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.StatusCode == http.StatusServiceUnavailable {
		return "Service temporarily unavailable"
	}
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto one of the error kinds.
func (e *HTTPError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrAuthenticationExpired
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrServiceUnavailable
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return ErrValidation
	default:
		return ErrServiceUnavailable
	}
}

// TransportError wraps a failure that happened before a response was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

func (e *TransportError) Unwrap() []error {
	if e.Timeout() {
		return []error{ErrNetworkTimeout, e.Err}
	}
	return []error{ErrServiceUnavailable, e.Err}
}

// NotFoundError reports that no resource of Kind matched Reference.
type NotFoundError struct {
	Kind      string
	Reference string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Reference)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AmbiguousError reports that Reference matched Count resources of Kind.
type AmbiguousError struct {
	Kind      string
	Reference string
	Count     int
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%s reference %q is ambiguous: matches %d resources, use a longer prefix or the full ID", e.Kind, e.Reference, e.Count)
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguousReference }

// Validation returns an ErrValidation error carrying a user-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

const (
	ExitGeneric     = 1
	ExitAuth        = 3
	ExitNotFound    = 4
	ExitValidation  = 5
	ExitUnavailable = 6
)

// ExitCode maps err onto the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrAuthenticationExpired):
		return ExitAuth
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAmbiguousReference):
		return ExitNotFound
	case errors.Is(err, ErrValidation):
		return ExitValidation
	case errors.Is(err, ErrServiceUnavailable), errors.Is(err, ErrNetworkTimeout):
		return ExitUnavailable
	default:
		return ExitGeneric
	}
}
