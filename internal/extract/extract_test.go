package extract

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/tagscrape/internal/model"
)

const pageURL = "https://example.com/article"

func newDocument(body string) *model.Document {
	return &model.Document{
		URL:         pageURL,
		FinalURL:    pageURL,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(body),
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtract_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		tagKinds []string
		want     map[string][]model.Record
	}{
		{
			name:     "heading and paragraph with nested markup",
			body:     `<h1>Title</h1><p>Hello <b>World</b></p>`,
			tagKinds: []string{"h1", "p"},
			want: map[string][]model.Record{
				"h1": {model.NewTextRecord(1, "h1", "Title", pageURL)},
				"p":  {model.NewTextRecord(1, "p", "Hello World", pageURL)},
			},
		},
		{
			name:     "image without alt",
			body:     `<img src="/a.png">`,
			tagKinds: []string{"img"},
			want: map[string][]model.Record{
				"img": {model.NewImageRecord(1, "img", nil, model.StringPtr("/a.png"), pageURL)},
			},
		},
		{
			name:     "anchor without href",
			body:     `<a>Click</a>`,
			tagKinds: []string{"a"},
			want: map[string][]model.Record{
				"a": {model.NewAnchorRecord(1, "a", "Click", nil, pageURL)},
			},
		},
		{
			name:     "absent kind maps to empty sequence",
			body:     `<h1>Only</h1>`,
			tagKinds: []string{"h3"},
			want: map[string][]model.Record{
				"h3": {},
			},
		},
		{
			name:     "image without src and with empty alt",
			body:     `<img alt="">`,
			tagKinds: []string{"img"},
			want: map[string][]model.Record{
				"img": {model.NewImageRecord(1, "img", model.StringPtr(""), nil, pageURL)},
			},
		},
		{
			name:     "text is trimmed",
			body:     "<h2>\n   Spaced out \t</h2>",
			tagKinds: []string{"h2"},
			want: map[string][]model.Record{
				"h2": {model.NewTextRecord(1, "h2", "Spaced out", pageURL)},
			},
		},
		{
			name:     "anchor with href",
			body:     `<a href="https://example.org/x">Go <em>there</em></a>`,
			tagKinds: []string{"a"},
			want: map[string][]model.Record{
				"a": {model.NewAnchorRecord(1, "a", "Go there", model.StringPtr("https://example.org/x"), pageURL)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rs, err := New(WithLogger(quietLogger())).Extract(newDocument(tt.body), tt.tagKinds)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}

			if diff := cmp.Diff(tt.tagKinds, rs.Kinds()); diff != "" {
				t.Errorf("Kinds mismatch (-want +got):\n%s", diff)
			}
			for kind, want := range tt.want {
				got, ok := rs.Get(kind)
				if !ok {
					t.Fatalf("kind %q missing from result", kind)
				}
				if got == nil {
					t.Errorf("kind %q maps to nil, want empty sequence", kind)
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("records for %q mismatch (-want +got):\n%s", kind, diff)
				}
			}
		})
	}
}

func TestExtract_OrderIsGapFree(t *testing.T) {
	t.Parallel()

	body := `<div><h2>one</h2><section><h2>two</h2></section></div><h2>three</h2><p>x</p><p>y</p>`
	rs, err := New(WithLogger(quietLogger())).Extract(newDocument(body), []string{"p", "h2"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	for _, kind := range []string{"h2", "p"} {
		records, _ := rs.Get(kind)
		for i, r := range records {
			if r.Order != i+1 {
				t.Errorf("%s record %d has order %d, want %d", kind, i, r.Order, i+1)
			}
			if r.Type != kind {
				t.Errorf("%s record %d has type %q", kind, i, r.Type)
			}
		}
	}

	h2, _ := rs.Get("h2")
	texts := make([]string, 0, len(h2))
	for _, r := range h2 {
		texts = append(texts, r.Text)
	}
	if diff := cmp.Diff([]string{"one", "two", "three"}, texts); diff != "" {
		t.Errorf("document order mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"p", "h2"}, rs.Kinds()); diff != "" {
		t.Errorf("request order mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	t.Parallel()

	doc := newDocument(`<h1>A</h1><a href="/x">B</a><img src="/c.png" alt="C">`)
	kinds := []string{"h1", "a", "img"}
	e := New(WithLogger(quietLogger()))

	first, err := e.Extract(doc, kinds)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	second, err := e.Extract(doc, kinds)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	for _, kind := range kinds {
		a, _ := first.Get(kind)
		b, _ := second.Get(kind)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("records for %q differ between runs (-first +second):\n%s", kind, diff)
		}
	}
}

func TestExtract_UnknownPolicy(t *testing.T) {
	t.Parallel()

	body := `<span> inline </span><span>two</span>`

	t.Run("text policy uses the text schema and warns", func(t *testing.T) {
		t.Parallel()

		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))

		rs, err := New(WithUnknownPolicy(model.UnknownAsText), WithLogger(logger)).
			Extract(newDocument(body), []string{"span"})
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}

		want := []model.Record{
			model.NewTextRecord(1, "span", "inline", pageURL),
			model.NewTextRecord(2, "span", "two", pageURL),
		}
		got, _ := rs.Get("span")
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
		if !strings.Contains(logs.String(), "no dedicated schema") {
			t.Errorf("expected a warning, got logs: %s", logs.String())
		}
	})

	t.Run("skip policy records an empty sequence", func(t *testing.T) {
		t.Parallel()

		rs, err := New(WithUnknownPolicy(model.UnknownSkip), WithLogger(quietLogger())).
			Extract(newDocument(body), []string{"h1", "span"})
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		got, ok := rs.Get("span")
		if !ok || got == nil || len(got) != 0 {
			t.Errorf("expected empty sequence for span, got %v (present=%v)", got, ok)
		}
	})

	t.Run("reject policy fails before parsing", func(t *testing.T) {
		t.Parallel()

		_, err := New(WithUnknownPolicy(model.UnknownReject), WithLogger(quietLogger())).
			Extract(newDocument(body), []string{"h1", "span"})
		if !errors.Is(err, ErrUnsupportedTagKind) {
			t.Errorf("expected ErrUnsupportedTagKind, got %v", err)
		}
	})

	t.Run("default policy is text", func(t *testing.T) {
		t.Parallel()

		if New().policy != model.UnknownAsText {
			t.Errorf("default policy = %q", New().policy)
		}
	})
}

func TestExtract_InvalidTagKind(t *testing.T) {
	t.Parallel()

	_, err := New(WithLogger(quietLogger())).Extract(newDocument("<p>x</p>"), []string{"p > b"})
	if !errors.Is(err, ErrInvalidTagKind) {
		t.Errorf("expected ErrInvalidTagKind, got %v", err)
	}
}

func TestExtract_Charset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        []byte
		want        string
	}{
		{
			name:        "latin-1 from header",
			contentType: "text/html; charset=iso-8859-1",
			body:        []byte("<h1>caf\xe9</h1>"),
			want:        "café",
		},
		{
			name:        "shift_jis from header",
			contentType: "text/html; charset=Shift_JIS",
			body:        []byte("<h1>\x93\xfa\x96\x7b</h1>"),
			want:        "日本",
		},
		{
			name:        "meta charset when header names none",
			contentType: "text/html",
			body:        []byte(`<html><head><meta charset="iso-8859-1"></head><body><h1>na\xefve</h1></body></html>`),
			want:        "naïve",
		},
		{
			name:        "utf-8 passes through",
			contentType: "text/html; charset=utf-8",
			body:        []byte("<h1>日本語</h1>"),
			want:        "日本語",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc := newDocument("")
			doc.ContentType = tt.contentType
			doc.Body = tt.body

			rs, err := New(WithLogger(quietLogger())).Extract(doc, []string{"h1"})
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			records, _ := rs.Get("h1")
			if len(records) != 1 {
				t.Fatalf("expected 1 record, got %d", len(records))
			}
			if records[0].Text != tt.want {
				t.Errorf("Text = %q, want %q", records[0].Text, tt.want)
			}
		})
	}
}

func TestExtractor_CheckTagKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		policy   model.UnknownPolicy
		tagKinds []string
		want     error
	}{
		{name: "known kinds", policy: model.UnknownReject, tagKinds: []string{"h1", "a", "img"}},
		{name: "unknown kind with text policy", policy: model.UnknownAsText, tagKinds: []string{"span"}},
		{name: "unknown kind with skip policy", policy: model.UnknownSkip, tagKinds: []string{"span"}},
		{name: "unknown kind with reject policy", policy: model.UnknownReject, tagKinds: []string{"h1", "span"}, want: ErrUnsupportedTagKind},
		{name: "selector", policy: model.UnknownAsText, tagKinds: []string{"p > b"}, want: ErrInvalidTagKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := New(WithUnknownPolicy(tt.policy)).CheckTagKinds(tt.tagKinds)
			if !errors.Is(err, tt.want) {
				t.Errorf("CheckTagKinds() = %v, want %v", err, tt.want)
			}
		})
	}
}
