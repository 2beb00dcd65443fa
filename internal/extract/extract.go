package extract

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/tagscrape/internal/model"
	"golang.org/x/net/html/charset"
)

// ErrUnsupportedTagKind is returned by Extract when the policy is
// model.UnknownReject and an unknown tag kind is requested.
var ErrUnsupportedTagKind = errors.New("unsupported tag kind")

// ErrInvalidTagKind is returned for a tag kind that is not an element name.
var ErrInvalidTagKind = errors.New("invalid tag kind")

// Extractor builds records from an HTML document.
type Extractor struct {
	policy model.UnknownPolicy
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithUnknownPolicy sets how tag kinds without a dedicated schema are handled.
func WithUnknownPolicy(policy model.UnknownPolicy) Option {
	return func(e *Extractor) {
		if policy.IsValid() {
			e.policy = policy
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Extractor. Unknown tag kinds use the text schema unless
// another policy is given.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		policy: model.UnknownAsText,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses doc.Body and returns a ResultSet holding one entry per
// tag kind, in request order. A kind without matches maps to an empty
// sequence. Records carry doc.URL, the URL that was requested.
//
// The body is decoded to UTF-8 using the charset of doc.ContentType, or
// the one declared in the document when the header names none.
func (e *Extractor) Extract(doc *model.Document, tagKinds []string) (*model.ResultSet, error) {
	if err := e.CheckTagKinds(tagKinds); err != nil {
		return nil, err
	}

	body, err := charset.NewReader(bytes.NewReader(doc.Body), doc.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}
	gdoc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	results := model.NewResultSet()
	for _, tag := range tagKinds {
		results.Set(tag, e.extractKind(gdoc.Selection, tag, doc.URL))
	}
	return results, nil
}

// CheckTagKinds reports whether every tag kind can be extracted under the
// configured policy, without touching any document.
func (e *Extractor) CheckTagKinds(tagKinds []string) error {
	for _, tag := range tagKinds {
		if !model.IsValidTagName(tag) {
			return fmt.Errorf("%w: %q", ErrInvalidTagKind, tag)
		}
		if model.KindOf(tag) == model.KindUnknown && e.policy == model.UnknownReject {
			return fmt.Errorf("%w: %q", ErrUnsupportedTagKind, tag)
		}
	}
	return nil
}

// extractKind returns the records for one tag kind in document order.
func (e *Extractor) extractKind(root *goquery.Selection, tag, pageURL string) []model.Record {
	kind := model.KindOf(tag)
	if kind == model.KindUnknown {
		e.logger.Warn("tag kind has no dedicated schema",
			"tag", tag,
			"policy", string(e.policy),
			"html_element", model.IsHTMLElement(tag),
		)
		if e.policy == model.UnknownSkip {
			return []model.Record{}
		}
		kind = model.KindText
	}

	matches := root.Find(tag)
	records := make([]model.Record, 0, matches.Length())
	matches.Each(func(i int, s *goquery.Selection) {
		records = append(records, buildRecord(kind, i+1, tag, s, pageURL))
	})

	e.logger.Debug("extracted elements", "tag", tag, "kind", kind.String(), "count", len(records))
	return records
}

// buildRecord creates the record for one matched element.
func buildRecord(kind model.Kind, order int, tag string, s *goquery.Selection, pageURL string) model.Record {
	switch kind {
	case model.KindAnchor:
		return model.NewAnchorRecord(order, tag, elementText(s), attr(s, "href"), pageURL)
	case model.KindImage:
		return model.NewImageRecord(order, tag, attr(s, "alt"), attr(s, "src"), pageURL)
	default:
		return model.NewTextRecord(order, tag, elementText(s), pageURL)
	}
}

// elementText returns the concatenated text of the element with leading
// and trailing whitespace removed.
func elementText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// attr returns the attribute value, or nil when the attribute is absent.
// A present but empty attribute yields a pointer to "".
func attr(s *goquery.Selection, name string) *string {
	v, ok := s.Attr(name)
	if !ok {
		return nil
	}
	return &v
}
