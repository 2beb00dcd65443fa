package scraper

import "errors"

var (
	// ErrInvalidURL is returned when the URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("URL must be an absolute http or https URL")

	// ErrNoTagKinds is returned when no tag kind is requested.
	ErrNoTagKinds = errors.New("at least one tag kind is required")

	// ErrInvalidPause is returned for a negative pause.
	ErrInvalidPause = errors.New("pause must not be negative")

	// ErrOnionRequiresProxy is returned for a .onion URL without a Tor
	// or SOCKS5 transport.
	ErrOnionRequiresProxy = errors.New(".onion URLs require --tor or --socks5")
)
