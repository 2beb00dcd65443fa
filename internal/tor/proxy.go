package tor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 greeting done by CheckConnection.
const checkProxyTimeout = 2 * time.Second

// SOCKS5 protocol constants
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
)

// Proxy routes HTTP requests through a SOCKS5 proxy.
type Proxy struct {
	// address is the proxy address in "host:port" format.
	address string

	// dialer is the SOCKS5 dialer. Host names are resolved by the proxy,
	// which .onion hosts require.
	dialer proxy.Dialer
}

// NewProxy creates a Proxy for the SOCKS5 server at address.
// It validates the address but does not connect; call CheckConnection for that.
func NewProxy(address string) (*Proxy, error) {
	if !isValidProxyAddress(address) {
		return nil, ErrInvalidProxyAddress
	}

	// Tor's SOCKS port does not require auth
	dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Proxy{address: address, dialer: dialer}, nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return portNum >= 1 && portNum <= 65535
}

// Address returns the configured proxy address.
func (p *Proxy) Address() string {
	return p.address
}

// CheckConnection verifies that a SOCKS5 proxy is listening at the address
// and accepts clients without authentication. Only the method negotiation is
// performed, so no connection to a remote host is requested.
func (p *Proxy) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Client sends: version + number of methods + methods
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	// Server responds: version + selected method
	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}

	if resp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	if resp[1] == socks5AuthNoAccept {
		return ProxyStatusAuthRequired
	}
	if resp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// DialContext connects to address through the proxy.
func (p *Proxy) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := p.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}
	return p.dialer.Dial(network, address)
}

// Transport returns an HTTP transport that dials every connection through
// the proxy. Idle connections are kept short because each one holds a
// proxied circuit.
func (p *Proxy) Transport() *http.Transport {
	return &http.Transport{
		DialContext:         p.DialContext,
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 30 * time.Second,
	}
}
