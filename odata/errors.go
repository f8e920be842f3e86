package odata

import (
	"errors"
	"fmt"
)

// Kind classifies a failed OData request.
type Kind int

const (
	// KindConnection indicates the server was unreachable: TCP/TLS errors,
	// DNS failures, and network timeouts. The only retryable kind.
	KindConnection Kind = iota + 1
	// KindAuth indicates HTTP 401. Never retried.
	KindAuth
	// KindNotFound indicates HTTP 404. Never retried.
	KindNotFound
	// KindRequest indicates any other 4xx or 5xx response. Never retried:
	// server-side state is relevant and a retry could amplify load.
	KindRequest
)

// String returns a short label for the kind.
func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindAuth:
		return "authentication"
	case KindNotFound:
		return "not found"
	case KindRequest:
		return "request"
	}

	return "unknown"
}

// Sentinel errors matched by [errors.Is] against a classified [*Error].
var (
	ErrConnection = errors.New("cannot reach server")
	ErrAuth       = errors.New("authentication failed")
	ErrNotFound   = errors.New("resource not found")
	ErrRequest    = errors.New("request rejected")
)

// Error is a classified OData request failure.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 for transport failures
	Path    string // request path, without query string
	Message string // server-provided or synthesized detail
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("odata %s error (%d) on %q: %s", e.Kind, e.Status, e.Path, e.Message)
	}

	return fmt.Sprintf("odata %s error on %q: %s", e.Kind, e.Path, e.Message)
}

// Unwrap returns the sentinel for the error's kind, plus the underlying
// cause if any, so both errors.Is(err, ErrAuth) and cause inspection work.
func (e *Error) Unwrap() []error {
	sentinel := map[Kind]error{
		KindConnection: ErrConnection,
		KindAuth:       ErrAuth,
		KindNotFound:   ErrNotFound,
		KindRequest:    ErrRequest,
	}[e.Kind]

	if e.cause != nil {
		return []error{sentinel, e.cause}
	}

	return []error{sentinel}
}

// Retryable reports whether the error kind is safe to retry.
func (e *Error) Retryable() bool {
	return e.Kind == KindConnection
}

// KindOf returns the [Kind] of a classified error, or 0 when err is not an
// [*Error].
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}

	return 0
}
