package scraper

import (
	"bytes"
	"context"
	"encoding/base32"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/tagscrape/internal/extract"
	"github.com/nao1215/tagscrape/internal/fetcher"
	"github.com/nao1215/tagscrape/internal/model"
	"github.com/nao1215/tagscrape/internal/persist"
	"github.com/nao1215/tagscrape/internal/report"
	"github.com/nao1215/tagscrape/internal/tor"
	"golang.org/x/crypto/sha3"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestScraper returns a Scraper writing files to a temp dir and its
// console output to the returned buffer.
func newTestScraper(t *testing.T, opts ...Option) (*Scraper, *bytes.Buffer, string) {
	t.Helper()

	dir := t.TempDir()
	var console bytes.Buffer
	logger := quietLogger()
	base := []Option{
		WithLogger(logger),
		WithConsole(report.NewConsole(&console)),
		WithFetcher(fetcher.New(fetcher.WithLogger(logger), fetcher.WithTimeout(5*time.Second))),
		WithExtractor(extract.New(extract.WithLogger(logger))),
		WithPersister(persist.NewWriter(persist.WithOutputDir(dir), persist.WithLogger(logger))),
	}
	return New(append(base, opts...)...), &console, dir
}

func htmlServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	return len(entries)
}

func TestScrape(t *testing.T) {
	t.Parallel()

	t.Run("heading and paragraph", func(t *testing.T) {
		t.Parallel()

		srv := htmlServer(t, `<h1>Title</h1><p>Hello <b>World</b></p>`)
		s, console, dir := newTestScraper(t)

		rs, err := s.Scrape(context.Background(), srv.URL+"/", []string{"h1", "p"}, 0, true)
		if err != nil {
			t.Fatalf("Scrape() error = %v", err)
		}

		h1, _ := rs.Get("h1")
		p, _ := rs.Get("p")
		if diff := cmp.Diff([]model.Record{model.NewTextRecord(1, "h1", "Title", srv.URL+"/")}, h1); diff != "" {
			t.Errorf("h1 mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]model.Record{model.NewTextRecord(1, "p", "Hello World", srv.URL+"/")}, p); diff != "" {
			t.Errorf("p mismatch (-want +got):\n%s", diff)
		}
		if got := countFiles(t, dir); got != 4 {
			t.Errorf("expected 4 files, got %d", got)
		}
		if !strings.Contains(console.String(), "Starting scrape of "+srv.URL+"/ for <h1>, <p> tags...") {
			t.Errorf("expected start line:\n%s", console.String())
		}
	})

	t.Run("persist off writes nothing but returns results", func(t *testing.T) {
		t.Parallel()

		srv := htmlServer(t, `<img src="/a.png">`)
		s, _, dir := newTestScraper(t)

		rs, err := s.Scrape(context.Background(), srv.URL, []string{"img"}, 0, false)
		if err != nil {
			t.Fatalf("Scrape() error = %v", err)
		}
		img, _ := rs.Get("img")
		want := []model.Record{model.NewImageRecord(1, "img", nil, model.StringPtr("/a.png"), srv.URL)}
		if diff := cmp.Diff(want, img); diff != "" {
			t.Errorf("img mismatch (-want +got):\n%s", diff)
		}
		if got := countFiles(t, dir); got != 0 {
			t.Errorf("expected no files, got %d", got)
		}
	})

	t.Run("absent kind maps to empty sequence and writes no files", func(t *testing.T) {
		t.Parallel()

		srv := htmlServer(t, `<h1>Only</h1>`)
		s, console, dir := newTestScraper(t)

		rs, err := s.Scrape(context.Background(), srv.URL, []string{"h3"}, 0, true)
		if err != nil {
			t.Fatalf("Scrape() error = %v", err)
		}
		h3, ok := rs.Get("h3")
		if !ok || h3 == nil || len(h3) != 0 {
			t.Errorf("expected empty sequence, got %v (present=%v)", h3, ok)
		}
		if got := countFiles(t, dir); got != 0 {
			t.Errorf("expected no files, got %d", got)
		}
		if !strings.Contains(console.String(), "No <h3> tags found on this page") {
			t.Errorf("expected no-match line:\n%s", console.String())
		}
	})

	t.Run("non-HTML response yields an empty result set", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"h1":"not html"}`))
		}))
		defer srv.Close()
		s, console, dir := newTestScraper(t)

		run, err := s.Run(context.Background(), srv.URL, []string{"h1"}, 0, true)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !run.Results.IsEmpty() {
			t.Errorf("expected no keys, got %v", run.Results.Kinds())
		}
		if !errors.Is(run.Err, fetcher.ErrNonHTMLResponse) {
			t.Errorf("expected ErrNonHTMLResponse on run, got %v", run.Err)
		}
		if got := countFiles(t, dir); got != 0 {
			t.Errorf("expected no files, got %d", got)
		}
		output := console.String()
		if !strings.Contains(output, "Didn't get HTML back") {
			t.Errorf("expected non-HTML message:\n%s", output)
		}
		if strings.Contains(output, "Common issues:") {
			t.Error("non-HTML responses must not print the failure hints")
		}
	})

	t.Run("HTTP error status prints the hints", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}))
		defer srv.Close()
		s, console, _ := newTestScraper(t)

		rs, err := s.Scrape(context.Background(), srv.URL, []string{"h2"}, 0, true)
		if err != nil {
			t.Fatalf("Scrape() error = %v", err)
		}
		if !rs.IsEmpty() {
			t.Errorf("expected empty result set, got %v", rs.Kinds())
		}
		output := console.String()
		if !strings.Contains(output, "Scraping failed:") || !strings.Contains(output, "403") {
			t.Errorf("expected failure with status:\n%s", output)
		}
		if !strings.Contains(output, "Common issues:") {
			t.Errorf("expected hints:\n%s", output)
		}
	})

	t.Run("connection failure yields an empty result set", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatalf("failed to reserve port: %v", err)
		}
		addr := listener.Addr().String()
		listener.Close()

		s, console, _ := newTestScraper(t)
		rs, err := s.Scrape(context.Background(), "http://"+addr+"/", []string{"h2"}, 0, true)
		if err != nil {
			t.Fatalf("Scrape() error = %v", err)
		}
		if !rs.IsEmpty() {
			t.Errorf("expected empty result set, got %v", rs.Kinds())
		}
		if !strings.Contains(console.String(), "Common issues:") {
			t.Errorf("expected hints:\n%s", console.String())
		}
	})

	t.Run("cancellation during the pause skips the request", func(t *testing.T) {
		t.Parallel()

		requests := make(chan struct{}, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests <- struct{}{}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()
		s, console, _ := newTestScraper(t)

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		rs, err := s.Scrape(ctx, srv.URL, []string{"h2"}, time.Hour, true)
		if err != nil {
			t.Fatalf("Scrape() error = %v", err)
		}
		if !rs.IsEmpty() {
			t.Error("expected empty result set")
		}
		select {
		case <-requests:
			t.Error("no request may be sent after cancellation")
		default:
		}
		if !strings.Contains(console.String(), "Scraping cancelled") {
			t.Errorf("expected cancellation line:\n%s", console.String())
		}
	})

	t.Run("pause happens before the request", func(t *testing.T) {
		t.Parallel()

		requestedAt := make(chan time.Time, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requestedAt <- time.Now()
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<h2>x</h2>"))
		}))
		defer srv.Close()
		s, _, _ := newTestScraper(t)

		start := time.Now()
		if _, err := s.Scrape(context.Background(), srv.URL, []string{"h2"}, 50*time.Millisecond, false); err != nil {
			t.Fatalf("Scrape() error = %v", err)
		}
		if waited := (<-requestedAt).Sub(start); waited < 50*time.Millisecond {
			t.Errorf("request sent %v after start, want at least 50ms", waited)
		}
	})

	t.Run("tag kinds are normalized and deduplicated", func(t *testing.T) {
		t.Parallel()

		srv := htmlServer(t, `<h2>x</h2>`)
		s, _, _ := newTestScraper(t)

		rs, err := s.Scrape(context.Background(), srv.URL, []string{"H2", "h2", " p "}, 0, false)
		if err != nil {
			t.Fatalf("Scrape() error = %v", err)
		}
		if diff := cmp.Diff([]string{"h2", "p"}, rs.Kinds()); diff != "" {
			t.Errorf("Kinds mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestScrape_RecordsHistory(t *testing.T) {
	t.Parallel()

	srv := htmlServer(t, `<h2>x</h2>`)
	rec := &fakeRecorder{}
	s, _, _ := newTestScraper(t, WithRecorder(rec))

	run, err := s.Run(context.Background(), srv.URL, []string{"h2"}, 0, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rec.calls != 1 {
		t.Errorf("expected one history call, got %d", rec.calls)
	}
	if diff := cmp.Diff([]string{"delay", "fetch", "content_type_guard", "extract", "preview", "record"}, run.PerformedSteps); diff != "" {
		t.Errorf("PerformedSteps mismatch (-want +got):\n%s", diff)
	}
}

type fakeRecorder struct {
	calls int
}

func (f *fakeRecorder) RecordRun(context.Context, *model.Run) (int64, error) {
	f.calls++
	return int64(f.calls), nil
}

func TestScrape_Preconditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		url      string
		tagKinds []string
		pause    time.Duration
		want     error
	}{
		{name: "relative URL", url: "/news", tagKinds: []string{"h2"}, want: ErrInvalidURL},
		{name: "unsupported scheme", url: "ftp://example.com/", tagKinds: []string{"h2"}, want: ErrInvalidURL},
		{name: "unparsable URL", url: "http://[::1", tagKinds: []string{"h2"}, want: ErrInvalidURL},
		{name: "no tag kinds", url: "https://example.com/", tagKinds: nil, want: ErrNoTagKinds},
		{name: "only blank tag kinds", url: "https://example.com/", tagKinds: []string{" "}, want: ErrNoTagKinds},
		{name: "selector tag kind", url: "https://example.com/", tagKinds: []string{"div.x"}, want: extract.ErrInvalidTagKind},
		{name: "negative pause", url: "https://example.com/", tagKinds: []string{"h2"}, pause: -time.Second, want: ErrInvalidPause},
		{name: "malformed onion", url: "http://notreal.onion/", tagKinds: []string{"h2"}, want: tor.ErrInvalidOnionAddress},
		{name: "onion without proxy", url: "http://" + testOnionHost() + "/", tagKinds: []string{"h2"}, want: ErrOnionRequiresProxy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, console, _ := newTestScraper(t)
			rs, err := s.Scrape(context.Background(), tt.url, tt.tagKinds, tt.pause, true)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if rs != nil {
				t.Error("expected nil result set on precondition failure")
			}
			if console.Len() != 0 {
				t.Errorf("expected no console output, got %q", console.String())
			}
		})
	}
}

func TestScrape_RejectPolicyFailsBeforeRequest(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<span>x</span>"))
	}))
	defer srv.Close()

	s, console, dir := newTestScraper(t,
		WithExtractor(extract.New(extract.WithUnknownPolicy(model.UnknownReject), extract.WithLogger(quietLogger()))),
	)

	rs, err := s.Scrape(context.Background(), srv.URL, []string{"h1", "span"}, 0, true)
	if !errors.Is(err, extract.ErrUnsupportedTagKind) {
		t.Fatalf("expected ErrUnsupportedTagKind, got %v", err)
	}
	if rs != nil {
		t.Error("expected nil result set")
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("expected no request, got %d", n)
	}
	if console.Len() != 0 {
		t.Errorf("expected no console output, got %q", console.String())
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("expected no files, got %d", n)
	}
}

func TestScrape_DecodesDeclaredCharset(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<h1>caf\xe9</h1>"))
	}))
	defer srv.Close()

	s, _, dir := newTestScraper(t)
	rs, err := s.Scrape(context.Background(), srv.URL, []string{"h1"}, 0, true)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	records, _ := rs.Get("h1")
	if len(records) != 1 || records[0].Text != "café" {
		t.Fatalf("expected one record with text café, got %+v", records)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("failed to read %s: %v", e.Name(), err)
		}
		if !strings.Contains(string(data), "café") {
			t.Errorf("%s does not contain decoded text:\n%s", e.Name(), data)
		}
	}
}

// testOnionHost builds a well-formed v3 onion host from a fixed key.
func testOnionHost() string {
	pubkey := bytes.Repeat([]byte{0x42}, 32)
	const version = 0x03

	h := sha3.New256()
	h.Write([]byte(".onion checksum"))
	h.Write(pubkey)
	h.Write([]byte{version})
	checksum := h.Sum(nil)[:2]

	data := make([]byte, 0, 35)
	data = append(data, pubkey...)
	data = append(data, checksum...)
	data = append(data, version)
	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + ".onion"
}
