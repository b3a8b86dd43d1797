// Package fetch provides page retrieval primitives for the scrape pipeline:
// a plain HTTP fetcher with bounded retries, a browser backed fetcher for
// script rendered sources and a fixed size session pool that caps the number
// of live browser sessions.
package fetch

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind partitions fetch failures into the classes the retry policy
// cares about.
type ErrorKind uint8

const (
	// Network marks transport level failures: connection refused, reset,
	// DNS resolution and timeouts. These are the only retryable failures.
	Network ErrorKind = iota
	// HTTPStatus marks a completed request that returned a non-2xx status.
	HTTPStatus
	// RedirectLoop marks a request that exceeded the redirect hop limit.
	RedirectLoop
)

// String implements fmt.Stringer for ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case Network:
		return "network"
	case HTTPStatus:
		return "http status"
	case RedirectLoop:
		return "redirect loop"
	default:
		return "unknown"
	}
}

// Error describes a failed page fetch along with its failure class.
type Error struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface for Error.
func (e *Error) Error() string {
	if e.Kind == HTTPStatus {
		return fmt.Sprintf("fetch %q: unexpected status %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("fetch %q: %s: %v", e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether retrying err could plausibly succeed. Only
// transport level failures qualify: a server that answered with an error
// status or bounced the client through a redirect loop will keep doing so.
func IsRetryable(err error) bool {
	var fErr *Error
	if !errors.As(err, &fErr) {
		return false
	}

	return fErr.Kind == Network
}

// Fetcher is implemented by types that can retrieve the rendered or raw
// HTML document behind a URL.
type Fetcher interface {
	// Fetch retrieves the HTML document at the given URL. Implementations
	// must honor context cancellation between retry attempts.
	Fetch(ctx context.Context, url string) (string, error)
}
