package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nao1215/tagscrape/internal/model"
)

const (
	// defaultAccept mirrors what a desktop browser sends for a navigation.
	defaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	// defaultAcceptLanguage is sent so sites do not fall back to a geo-guessed locale.
	defaultAcceptLanguage = "en-US,en;q=0.9"

	// maxRedirects is the redirect limit before the request fails.
	maxRedirects = 10

	// defaultMaxBodySize is used when no limit is configured.
	defaultMaxBodySize = 10 * 1024 * 1024
)

// Fetcher performs the single GET of a scrape run.
type Fetcher struct {
	client      *resty.Client
	userAgent   string
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithTimeout bounds the whole exchange including redirects and body.
// Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.client.SetTimeout(d)
	}
}

// WithHeaders adds request headers. They override the browser defaults.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		if len(headers) > 0 {
			f.client.SetHeaders(headers)
		}
	}
}

// WithCookie sets a raw Cookie header value.
func WithCookie(cookie string) Option {
	return func(f *Fetcher) {
		if cookie != "" {
			f.client.SetHeader("Cookie", cookie)
		}
	}
}

// WithTransport replaces the HTTP transport, e.g. to dial through a proxy.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		if rt != nil {
			f.client.SetTransport(rt)
		}
	}
}

// WithMaxBodySize limits how many body bytes are read.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher. The User-Agent is fixed at construction and
// sent unchanged with every request.
func New(opts ...Option) *Fetcher {
	client := resty.New().
		SetHeader("Accept", defaultAccept).
		SetHeader("Accept-Language", defaultAcceptLanguage).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))

	f := &Fetcher{
		client:      client,
		maxBodySize: defaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.userAgent != "" {
		f.client.SetHeader("User-Agent", f.userAgent)
	}
	f.client.SetLogger(restyLogger{logger: f.logger})
	return f
}

// restyLogger routes resty's own messages into slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "resty")
}

// UserAgent returns the User-Agent sent with every request.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// Fetch performs a GET of rawURL and returns the response as a Document.
// A transport failure yields a *TransportError and a non-2xx status an
// *HTTPStatusError; both match ErrFetchFailed. The content type is not
// checked here, see CheckHTML.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.Document, error) {
	f.logger.Debug("sending request", "url", rawURL, "user_agent", f.userAgent)

	res, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}

	body := res.RawBody()
	defer body.Close()

	if !res.IsSuccess() {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, body, 4096) //nolint:errcheck // best effort
		return nil, &HTTPStatusError{
			URL:        rawURL,
			StatusCode: res.StatusCode(),
			Status:     res.Status(),
		}
	}

	data, err := io.ReadAll(io.LimitReader(body, f.maxBodySize+1))
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	doc := &model.Document{
		URL:         rawURL,
		FinalURL:    rawURL,
		StatusCode:  res.StatusCode(),
		ContentType: res.Header().Get("Content-Type"),
		Body:        data,
		FetchedAt:   time.Now(),
	}
	if int64(len(data)) > f.maxBodySize {
		doc.Body = data[:f.maxBodySize]
		doc.Truncated = true
		f.logger.Warn("response body truncated", "url", rawURL, "limit_bytes", f.maxBodySize)
	}
	if raw := res.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		doc.FinalURL = raw.Request.URL.String()
	}
	doc.ComputeHash()

	f.logger.Debug("response received",
		"url", rawURL,
		"final_url", doc.FinalURL,
		"status", doc.StatusCode,
		"content_type", doc.ContentType,
		"bytes", len(doc.Body),
	)
	return doc, nil
}

// CheckHTML returns ErrNonHTMLResponse wrapped with the observed content
// type unless doc is an HTML page.
func CheckHTML(doc *model.Document) error {
	if doc.IsHTML() {
		return nil
	}
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "none"
	}
	return fmt.Errorf("%w: content type %s", ErrNonHTMLResponse, contentType)
}
