package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so that callers can use
// errors.Is() while the CLI prints the message as-is.
var (
	// ErrNoTarget is returned when no URL is specified.
	ErrNoTarget = errors.New("no target specified: provide a URL to scrape")

	// ErrInvalidURL is returned when the URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid URL: must be an absolute http or https URL")

	// ErrNoTagKinds is returned when the tag kind list is empty.
	ErrNoTagKinds = errors.New("no tag kinds specified: use --tags (e.g. --tags h1,h2,p)")

	// ErrInvalidTagKind is returned when a tag kind is not a plain element name.
	ErrInvalidTagKind = errors.New("invalid tag kind: must be an element name such as h2 or img")

	// ErrUnsupportedTagKind is returned when a tag kind has no dedicated schema
	// and the unknown tag policy is "reject".
	ErrUnsupportedTagKind = errors.New("unsupported tag kind: only h1-h6, p, a and img are accepted with --unknown reject")

	// ErrInvalidUnknownPolicy is returned for an unrecognized --unknown value.
	ErrInvalidUnknownPolicy = errors.New("invalid unknown tag policy: must be text, skip or reject")

	// ErrInvalidPause is returned when the politeness delay is negative.
	ErrInvalidPause = errors.New("invalid pause: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is negative.
	// Zero is allowed and disables the timeout.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the body size limit is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidFormat is returned for an unrecognized --format value.
	ErrInvalidFormat = errors.New("invalid format: must be text, markdown or json")

	// ErrConflictingTransports is returned when both --tor and --socks5 are set.
	ErrConflictingTransports = errors.New("conflicting transports: --tor and --socks5 cannot be used together")

	// ErrNoOutputDir is returned when saving is enabled without an output directory.
	ErrNoOutputDir = errors.New("no output directory: --output must not be empty when saving files")
)
