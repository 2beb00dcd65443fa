package tor

import (
	"encoding/base32"
	"errors"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// OnionSuffix is the top-level domain of onion services.
	OnionSuffix = ".onion"

	// onionV3Version is the version byte for v3 onion addresses.
	onionV3Version = 0x03
)

// onionV3Pattern matches v3 onion host names (56 base32 characters + .onion).
// Subdomains of an onion service are allowed.
var onionV3Pattern = regexp.MustCompile(`(?:^|\.)([a-z2-7]{56})\.onion$`)

// onionV2Pattern matches v2 onion host names (16 base32 characters + .onion).
var onionV2Pattern = regexp.MustCompile(`(?:^|\.)[a-z2-7]{16}\.onion$`)

// checksumPrefix is the prefix used in v3 onion address checksum calculation.
var checksumPrefix = []byte(".onion checksum")

// Onion address validation errors.
var (
	// ErrInvalidOnionAddress is returned when an .onion host is not a valid v3 address.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrV2AddressDeprecated is returned for v2 addresses, which stopped
	// working in October 2021.
	ErrV2AddressDeprecated = errors.New("v2 onion addresses are deprecated and no longer functional")
)

// IsOnionHost reports whether host belongs to the .onion domain.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSuffix(host, ".")), OnionSuffix)
}

// CheckOnionHost validates an .onion host name. It returns nil for
// hosts outside the .onion domain.
func CheckOnionHost(host string) error {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if !IsOnionHost(host) {
		return nil
	}
	if IsValidV3Address(host) {
		return nil
	}
	if onionV2Pattern.MatchString(host) {
		return ErrV2AddressDeprecated
	}
	return ErrInvalidOnionAddress
}

// IsValidV3Address checks if host is a valid v3 onion address, verifying
// the version byte and the checksum the way Tor does before connecting.
func IsValidV3Address(host string) bool {
	m := onionV3Pattern.FindStringSubmatch(strings.ToLower(host))
	if m == nil {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(m[1]))
	if err != nil {
		return false
	}

	// 32 bytes ed25519 public key, 2 bytes checksum, 1 byte version
	if len(decoded) != 35 {
		return false
	}

	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]
	if version != onionV3Version {
		return false
	}

	expected := computeV3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

// computeV3Checksum returns the first 2 bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}
