// Package log provides secure logging for tagscrape, built on top of the
// standard slog package.
//
// The SecureHandler masks sensitive attribute values before they reach the
// underlying handler:
//   - request headers and cookies (Authorization, Cookie, X-Api-Key)
//   - values that look like credentials (bearer tokens, JWTs, private keys)
//   - passwords and secret query parameters inside logged URLs
//
// Cookies and headers come from the per-site configuration file, so a
// verbose log of a run against a logged-in page must not leak them.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("request prepared",
//	    "url", "https://user:pw@example.com/?token=abc", // password and token masked
//	    "cookie", "session=abc123",                      // masked
//	)
//	slog.SetDefault(logger)
package log
