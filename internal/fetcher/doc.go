// Package fetcher performs the single HTTP GET of a scrape run with a
// resty client: browser-like headers, bounded redirects, a body size limit
// and an optional proxy transport. Failures are typed so callers can tell
// a transport problem from an error status while matching both with
// ErrFetchFailed.
package fetcher
