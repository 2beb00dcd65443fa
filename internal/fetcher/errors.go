package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed matches every failure to obtain a successful response,
	// whether the request never completed or the server answered non-2xx.
	// Use errors.As with *TransportError or *HTTPStatusError to tell them apart.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrNonHTMLResponse is returned when the Content-Type header does not
	// contain text/html.
	ErrNonHTMLResponse = errors.New("response is not HTML")
)

// TransportError is a failure below HTTP: DNS, connection, TLS, timeout,
// too many redirects or a cancelled context.
type TransportError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

// Unwrap exposes both ErrFetchFailed and the cause, so errors.Is works
// for context.Canceled and friends.
func (e *TransportError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// HTTPStatusError is returned when the final response status is not 2xx.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	return fmt.Sprintf("request to %s returned %s", e.URL, status)
}

// Is reports whether target is ErrFetchFailed.
func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrFetchFailed //nolint:errorlint // sentinel comparison
}
