package model

import (
	"regexp"
	"strings"

	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind is the record schema selected for a tag kind.
//
// The mapping from tag name to Kind is closed: h1-h6 and p produce text
// records, a produces anchor records and img produces image records.
// Every other tag name is KindUnknown and callers must decide what to do
// with it (see UnknownPolicy).
type Kind int

const (
	// KindUnknown is any tag outside the supported vocabulary.
	KindUnknown Kind = iota

	// KindText covers headings and paragraphs: order, type, text, url.
	KindText

	// KindAnchor covers <a>: order, type, text, href, url.
	KindAnchor

	// KindImage covers <img>: order, type, alt, src, url.
	KindImage
)

// String returns a human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindAnchor:
		return "anchor"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// Fields returns the record field names for the kind in output order.
// KindUnknown has no schema of its own and returns nil.
func (k Kind) Fields() []string {
	switch k {
	case KindText:
		return []string{FieldOrder, FieldType, FieldText, FieldURL}
	case KindAnchor:
		return []string{FieldOrder, FieldType, FieldText, FieldHref, FieldURL}
	case KindImage:
		return []string{FieldOrder, FieldType, FieldAlt, FieldSrc, FieldURL}
	default:
		return nil
	}
}

// Record field names shared by the JSON and CSV encodings.
const (
	FieldOrder = "order"
	FieldType  = "type"
	FieldText  = "text"
	FieldHref  = "href"
	FieldAlt   = "alt"
	FieldSrc   = "src"
	FieldURL   = "url"
)

// kindByTag is the exhaustive tag -> Kind mapping.
var kindByTag = map[string]Kind{
	"h1":  KindText,
	"h2":  KindText,
	"h3":  KindText,
	"h4":  KindText,
	"h5":  KindText,
	"h6":  KindText,
	"p":   KindText,
	"a":   KindAnchor,
	"img": KindImage,
}

// SupportedTags lists the tag kinds with a dedicated schema, in a stable order.
var SupportedTags = []string{"h1", "h2", "h3", "h4", "h5", "h6", "p", "a", "img"}

// KindOf classifies a tag name. The name is normalized first, so "H2" and
// " h2 " both map to KindText.
func KindOf(tag string) Kind {
	if k, ok := kindByTag[NormalizeTag(tag)]; ok {
		return k
	}
	return KindUnknown
}

// tagNamePattern matches names that can be used as element selectors.
var tagNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// NormalizeTag trims and lower-cases a tag name.
func NormalizeTag(tag string) string {
	// A Caser may keep state, so each call gets its own.
	return cases.Lower(language.Und).String(strings.TrimSpace(tag))
}

// IsValidTagName reports whether a normalized tag name is a syntactically
// valid element name. Names such as "div > p" or "*" are rejected so that
// a tag kind can never turn into an arbitrary selector.
func IsValidTagName(tag string) bool {
	return tagNamePattern.MatchString(tag)
}

// IsHTMLElement reports whether the tag is an element known to the HTML
// specification. It is used only for diagnostics on unknown kinds.
func IsHTMLElement(tag string) bool {
	return atom.Lookup([]byte(tag)) != 0
}

// UnknownPolicy decides how tag kinds outside the supported vocabulary are
// handled.
type UnknownPolicy string

const (
	// UnknownAsText extracts unknown kinds with the text schema.
	UnknownAsText UnknownPolicy = "text"

	// UnknownSkip records an empty sequence for unknown kinds.
	UnknownSkip UnknownPolicy = "skip"

	// UnknownReject refuses unknown kinds before any network call.
	UnknownReject UnknownPolicy = "reject"
)

// IsValid reports whether p is one of the defined policies.
func (p UnknownPolicy) IsValid() bool {
	switch p {
	case UnknownAsText, UnknownSkip, UnknownReject:
		return true
	default:
		return false
	}
}
