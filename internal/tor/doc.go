// Package tor routes the scrape request through a SOCKS5 proxy, either one
// the user already runs (--socks5) or a Tor daemon embedded with tornago
// (--tor).
//
// A Proxy only prepares an http.RoundTripper; the fetcher stays unaware of
// how the connection is made. .onion hosts are only reachable this way, so
// the package also recognizes and validates onion addresses.
package tor
