package tor

import "errors"

// Proxy connectivity errors.
var (
	// ErrProxyNotSOCKS5 is returned when the configured address responds but
	// does not speak SOCKS5. This typically happens when pointing at an HTTP
	// proxy or a different service on the port.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when we cannot establish a TCP connection
	// to the proxy address. This usually means the proxy is not running or the
	// address is incorrect.
	ErrProxyCannotConnect = errors.New("cannot connect to SOCKS5 proxy")

	// ErrProxyTimeout is returned when the connection to the proxy times out.
	ErrProxyTimeout = errors.New("timeout connecting to SOCKS5 proxy")

	// ErrProxyAuthRequired is returned when the SOCKS5 proxy refuses clients
	// without credentials.
	ErrProxyAuthRequired = errors.New("SOCKS5 proxy requires authentication")

	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrNotRunning is returned when a proxy is requested from an embedded
	// Tor daemon that has not been started.
	ErrNotRunning = errors.New("embedded Tor daemon is not running")
)

// ProxyStatus represents the result of checking the proxy connection.
type ProxyStatus int

const (
	// ProxyStatusOK indicates the proxy accepted a SOCKS5 greeting.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates the peer answered but not as a SOCKS5
	// proxy.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect indicates we could not establish a connection.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the connection attempt timed out.
	ProxyStatusTimeout

	// ProxyStatusAuthRequired indicates a SOCKS5 proxy that accepts no
	// method without credentials.
	ProxyStatusAuthRequired
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	case ProxyStatusAuthRequired:
		return "authentication required"
	default:
		return "unknown"
	}
}

// Error returns the appropriate error for this status, or nil if OK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotSOCKS5
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	case ProxyStatusAuthRequired:
		return ErrProxyAuthRequired
	default:
		return errors.New("unknown proxy status")
	}
}
