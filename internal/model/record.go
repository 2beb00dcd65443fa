package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// DefaultAltText is the alt value recorded for images without an alt attribute.
const DefaultAltText = "No alt text"

// Record is one extracted element.
//
// The fields that are meaningful depend on Kind: text records use Text,
// anchor records use Text and Href, image records use Alt and Src.
// Href and Src are pointers because a missing attribute is recorded as
// null rather than as an empty string.
type Record struct {
	// Order is the 1-based position of the element among all elements of
	// the same tag kind in the document.
	Order int

	// Type is the tag kind the record was extracted for (e.g. "h2").
	Type string

	// Kind selects the record schema.
	Kind Kind

	// Text is the trimmed concatenated text of the element.
	Text string

	// Href is the anchor href attribute, nil when absent.
	Href *string

	// Alt is the image alt attribute, DefaultAltText when absent.
	Alt string

	// Src is the image src attribute, nil when absent.
	Src *string

	// URL is the page URL the element was extracted from.
	URL string
}

// NewTextRecord creates a heading or paragraph record.
func NewTextRecord(order int, tag, text, pageURL string) Record {
	return Record{Order: order, Type: tag, Kind: KindText, Text: text, URL: pageURL}
}

// NewAnchorRecord creates an anchor record. A nil href means the attribute
// was missing.
func NewAnchorRecord(order int, tag, text string, href *string, pageURL string) Record {
	return Record{Order: order, Type: tag, Kind: KindAnchor, Text: text, Href: href, URL: pageURL}
}

// NewImageRecord creates an image record. A nil alt falls back to
// DefaultAltText; a nil src means the attribute was missing.
func NewImageRecord(order int, tag string, alt, src *string, pageURL string) Record {
	altText := DefaultAltText
	if alt != nil {
		altText = *alt
	}
	return Record{Order: order, Type: tag, Kind: KindImage, Alt: altText, Src: src, URL: pageURL}
}

// Fields returns the record's field names in output order.
func (r Record) Fields() []string {
	return r.Kind.Fields()
}

// Values returns the record's values as strings, aligned with Fields.
// Null attributes are rendered as empty strings.
func (r Record) Values() []string {
	order := strconv.Itoa(r.Order)
	switch r.Kind {
	case KindAnchor:
		return []string{order, r.Type, r.Text, deref(r.Href), r.URL}
	case KindImage:
		return []string{order, r.Type, r.Alt, deref(r.Src), r.URL}
	default:
		return []string{order, r.Type, r.Text, r.URL}
	}
}

// Preview returns the text shown for the record in console output:
// the element text, or the alt text for images.
func (r Record) Preview() string {
	if r.Kind == KindImage {
		return r.Alt
	}
	return r.Text
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// JSON shapes, one per kind. Field order here is the serialized order.
type textJSON struct {
	Order int    `json:"order"`
	Type  string `json:"type"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

type anchorJSON struct {
	Order int     `json:"order"`
	Type  string  `json:"type"`
	Text  string  `json:"text"`
	Href  *string `json:"href"`
	URL   string  `json:"url"`
}

type imageJSON struct {
	Order int     `json:"order"`
	Type  string  `json:"type"`
	Alt   string  `json:"alt"`
	Src   *string `json:"src"`
	URL   string  `json:"url"`
}

// MarshalJSON encodes the record with the field set of its kind.
// HTML characters are not escaped so the files read like the page text.
func (r Record) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindText:
		return marshalUnescaped(textJSON{Order: r.Order, Type: r.Type, Text: r.Text, URL: r.URL})
	case KindAnchor:
		return marshalUnescaped(anchorJSON{Order: r.Order, Type: r.Type, Text: r.Text, Href: r.Href, URL: r.URL})
	case KindImage:
		return marshalUnescaped(imageJSON{Order: r.Order, Type: r.Type, Alt: r.Alt, Src: r.Src, URL: r.URL})
	default:
		return nil, fmt.Errorf("cannot encode record of kind %s", r.Kind)
	}
}

// UnmarshalJSON decodes a record, inferring its kind from the keys present:
// "alt" or "src" means image, "href" means anchor, otherwise text.
func (r *Record) UnmarshalJSON(data []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	_, hasAlt := keys[FieldAlt]
	_, hasSrc := keys[FieldSrc]
	_, hasHref := keys[FieldHref]

	switch {
	case hasAlt || hasSrc:
		var v imageJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*r = Record{Order: v.Order, Type: v.Type, Kind: KindImage, Alt: v.Alt, Src: v.Src, URL: v.URL}
	case hasHref:
		var v anchorJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*r = Record{Order: v.Order, Type: v.Type, Kind: KindAnchor, Text: v.Text, Href: v.Href, URL: v.URL}
	default:
		var v textJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*r = Record{Order: v.Order, Type: v.Type, Kind: KindText, Text: v.Text, URL: v.URL}
	}
	return nil
}

// ErrSchemaMismatch is returned when records of one sequence do not share
// a field set.
var ErrSchemaMismatch = errors.New("records do not share a schema")

// marshalUnescaped is json.Marshal without HTML escaping.
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
