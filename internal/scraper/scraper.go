package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nao1215/tagscrape/internal/extract"
	"github.com/nao1215/tagscrape/internal/fetcher"
	"github.com/nao1215/tagscrape/internal/model"
	"github.com/nao1215/tagscrape/internal/persist"
	"github.com/nao1215/tagscrape/internal/pipeline"
	"github.com/nao1215/tagscrape/internal/report"
	"github.com/nao1215/tagscrape/internal/tor"
)

// Scraper runs single-page scrapes.
type Scraper struct {
	fetcher   pipeline.Fetcher
	extractor pipeline.Extractor
	persister pipeline.Persister
	recorder  pipeline.Recorder
	console   *report.Console
	logger    *slog.Logger

	// proxied is set when requests go through Tor or a SOCKS5 proxy,
	// which is required for .onion hosts.
	proxied bool
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithFetcher sets the component that performs the request.
func WithFetcher(f pipeline.Fetcher) Option {
	return func(s *Scraper) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithExtractor sets the component that builds records.
func WithExtractor(e pipeline.Extractor) Option {
	return func(s *Scraper) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithPersister sets the component that writes files when persisting.
func WithPersister(p pipeline.Persister) Option {
	return func(s *Scraper) {
		if p != nil {
			s.persister = p
		}
	}
}

// WithRecorder enables history recording of successful runs.
func WithRecorder(r pipeline.Recorder) Option {
	return func(s *Scraper) {
		s.recorder = r
	}
}

// WithConsole sets where the progress trace goes.
func WithConsole(c *report.Console) Option {
	return func(s *Scraper) {
		if c != nil {
			s.console = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProxied marks the transport as routed through Tor or a SOCKS5 proxy.
func WithProxied(proxied bool) Option {
	return func(s *Scraper) {
		s.proxied = proxied
	}
}

// New creates a Scraper. Without options it fetches directly, extracts
// with the text policy for unknown kinds and writes files to the current
// directory.
func New(opts ...Option) *Scraper {
	s := &Scraper{
		logger:  slog.Default(),
		console: report.NewConsole(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = fetcher.New(fetcher.WithLogger(s.logger))
	}
	if s.extractor == nil {
		s.extractor = extract.New(extract.WithLogger(s.logger))
	}
	if s.persister == nil {
		s.persister = persist.NewWriter(persist.WithLogger(s.logger))
	}
	return s
}

// Scrape fetches rawURL once after waiting for pause, extracts every tag
// kind in tagKinds and, when save is true, writes the files of each
// non-empty kind.
//
// It returns an error only when the arguments are invalid. Every run
// failure is reported on the console and yields an empty result set.
func (s *Scraper) Scrape(ctx context.Context, rawURL string, tagKinds []string, pause time.Duration, save bool) (*model.ResultSet, error) {
	run, err := s.Run(ctx, rawURL, tagKinds, pause, save)
	if err != nil {
		return nil, err
	}
	return run.Results, nil
}

// Run is Scrape returning the whole run state, for summaries and history.
// run.Results is never nil; run.Err holds the failure, if any.
func (s *Scraper) Run(ctx context.Context, rawURL string, tagKinds []string, pause time.Duration, save bool) (*model.Run, error) {
	kinds, err := s.validate(rawURL, tagKinds, pause)
	if err != nil {
		return nil, err
	}

	run := model.NewRun(rawURL, kinds)
	s.console.Starting(rawURL, kinds)

	cfg := pipeline.DefaultPipelineConfig{
		Pause:     pause,
		Fetcher:   s.fetcher,
		Extractor: s.extractor,
		Recorder:  s.recorder,
		Console:   s.console,
		Logger:    s.logger,
	}
	if save {
		cfg.Persister = s.persister
	}

	if err := pipeline.DefaultPipeline(cfg).Execute(ctx, run); err != nil {
		s.reportFailure(ctx, err)
		run.Results = model.NewResultSet()
		return run, nil
	}

	s.logger.Debug("scrape finished",
		"url", rawURL,
		"records", run.Results.Total(),
		"files", len(run.Files),
		"steps", run.PerformedSteps,
	)
	return run, nil
}

// reportFailure prints the diagnostics matching err.
func (s *Scraper) reportFailure(ctx context.Context, err error) {
	s.logger.Info("scrape failed", "error", err)

	switch {
	case ctx.Err() != nil:
		s.console.Cancelled()
	case errors.Is(err, fetcher.ErrNonHTMLResponse):
		// The guard step has already explained this one.
		s.console.Done()
	default:
		s.console.Failure(err)
	}
}

// validate checks the arguments and returns the normalized tag kinds.
func (s *Scraper) validate(rawURL string, tagKinds []string, pause time.Duration) ([]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	if host := u.Hostname(); tor.IsOnionHost(host) {
		if err := tor.CheckOnionHost(host); err != nil {
			return nil, err
		}
		if !s.proxied {
			return nil, ErrOnionRequiresProxy
		}
	}

	if pause < 0 {
		return nil, ErrInvalidPause
	}

	kinds := make([]string, 0, len(tagKinds))
	seen := make(map[string]bool, len(tagKinds))
	for _, raw := range tagKinds {
		kind := model.NormalizeTag(raw)
		if kind == "" || seen[kind] {
			continue
		}
		if !model.IsValidTagName(kind) {
			return nil, fmt.Errorf("%w: %q", extract.ErrInvalidTagKind, raw)
		}
		seen[kind] = true
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return nil, ErrNoTagKinds
	}
	if c, ok := s.extractor.(tagKindChecker); ok {
		if err := c.CheckTagKinds(kinds); err != nil {
			return nil, err
		}
	}
	return kinds, nil
}

// tagKindChecker is implemented by extractors that can refuse tag kinds
// before any request is made.
type tagKindChecker interface {
	CheckTagKinds(tagKinds []string) error
}
