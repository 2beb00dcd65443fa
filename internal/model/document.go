package model

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// htmlContentType is the substring a Content-Type header must contain for
// the body to be parsed.
const htmlContentType = "text/html"

// Document is a fetched page. It only lives for the duration of one run.
type Document struct {
	// URL is the URL that was requested.
	URL string

	// FinalURL is the URL after redirects.
	FinalURL string

	// StatusCode is the HTTP response status code.
	StatusCode int

	// ContentType is the raw Content-Type response header.
	ContentType string

	// Body is the response body, possibly truncated to the configured limit.
	Body []byte

	// Truncated is set when the body exceeded the limit and was cut.
	Truncated bool

	// Hash is the hex SHA3-256 of Body, empty for an empty body.
	Hash string

	// FetchedAt is when the response was received.
	FetchedAt time.Time
}

// IsHTML reports whether the Content-Type header contains "text/html".
// The check is a plain substring match, so parameters such as charset do
// not matter.
func (d *Document) IsHTML() bool {
	return strings.Contains(d.ContentType, htmlContentType)
}

// ComputeHash fills Hash from Body.
func (d *Document) ComputeHash() {
	if len(d.Body) == 0 {
		d.Hash = ""
		return
	}
	sum := sha3.Sum256(d.Body)
	d.Hash = hex.EncodeToString(sum[:])
}
