package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/tagscrape/internal/fetcher"
	"github.com/nao1215/tagscrape/internal/model"
	"github.com/nao1215/tagscrape/internal/persist"
	"github.com/nao1215/tagscrape/internal/report"
)

// Fetcher performs the single GET of a run.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.Document, error)
}

// Extractor turns a document into records.
type Extractor interface {
	Extract(doc *model.Document, tagKinds []string) (*model.ResultSet, error)
}

// Persister writes the records of one tag kind to disk.
type Persister interface {
	Persist(records []model.Record, sourceURL, tagKind string) persist.Result
}

// Recorder stores a finished run in the history.
type Recorder interface {
	RecordRun(ctx context.Context, run *model.Run) (int64, error)
}

// DelayStep waits before the request so the target is not hit immediately.
type DelayStep struct {
	pause   time.Duration
	console *report.Console
}

// NewDelayStep creates a DelayStep. A pause of zero does not wait.
func NewDelayStep(pause time.Duration, console *report.Console) *DelayStep {
	return &DelayStep{pause: pause, console: console}
}

// Name returns the step name.
func (s *DelayStep) Name() string {
	return "delay"
}

// Do blocks for the pause or until ctx is done.
func (s *DelayStep) Do(ctx context.Context, _ *model.Run) error {
	if s.pause <= 0 {
		return nil
	}
	s.console.Waiting(s.pause)

	timer := time.NewTimer(s.pause)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FetchStep requests the page.
type FetchStep struct {
	fetcher Fetcher
	console *report.Console
}

// NewFetchStep creates a FetchStep.
func NewFetchStep(f Fetcher, console *report.Console) *FetchStep {
	return &FetchStep{fetcher: f, console: console}
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do fetches run.URL and stores the response in run.Document.
func (s *FetchStep) Do(ctx context.Context, run *model.Run) error {
	s.console.Requesting()
	defer s.console.Done()

	doc, err := s.fetcher.Fetch(ctx, run.URL)
	if err != nil {
		return err
	}
	run.Document = doc
	return nil
}

// ContentTypeGuardStep stops the run when the response is not HTML.
type ContentTypeGuardStep struct {
	console *report.Console
}

// NewContentTypeGuardStep creates a ContentTypeGuardStep.
func NewContentTypeGuardStep(console *report.Console) *ContentTypeGuardStep {
	return &ContentTypeGuardStep{console: console}
}

// Name returns the step name.
func (s *ContentTypeGuardStep) Name() string {
	return "content_type_guard"
}

// Do returns fetcher.ErrNonHTMLResponse unless the document is HTML.
func (s *ContentTypeGuardStep) Do(_ context.Context, run *model.Run) error {
	if run.Document == nil {
		return fmt.Errorf("%w: no document", fetcher.ErrNonHTMLResponse)
	}
	if err := fetcher.CheckHTML(run.Document); err != nil {
		s.console.NonHTML(run.Document.ContentType)
		return err
	}
	return nil
}

// ExtractStep parses the document and collects the records of every
// requested tag kind.
type ExtractStep struct {
	extractor Extractor
	console   *report.Console
}

// NewExtractStep creates an ExtractStep.
func NewExtractStep(e Extractor, console *report.Console) *ExtractStep {
	return &ExtractStep{extractor: e, console: console}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do fills run.Results.
func (s *ExtractStep) Do(_ context.Context, run *model.Run) error {
	s.console.Parsing()
	if run.Document.Truncated {
		s.console.Truncated(int64(len(run.Document.Body)))
	}

	rs, err := s.extractor.Extract(run.Document, run.TagKinds)
	if err != nil {
		return err
	}
	run.Results = rs
	return nil
}

// PreviewStep prints the per-tag previews and counts.
type PreviewStep struct {
	console *report.Console
}

// NewPreviewStep creates a PreviewStep.
func NewPreviewStep(console *report.Console) *PreviewStep {
	return &PreviewStep{console: console}
}

// Name returns the step name.
func (s *PreviewStep) Name() string {
	return "preview"
}

// Do prints one block per tag kind in request order.
func (s *PreviewStep) Do(_ context.Context, run *model.Run) error {
	for _, kind := range run.Results.Kinds() {
		records, _ := run.Results.Get(kind)
		s.console.TagResult(kind, records)
	}
	return nil
}

// PersistStep writes the CSV and JSON files of every non-empty tag kind.
// Write failures are reported and counted but never fail the run.
type PersistStep struct {
	writer  Persister
	console *report.Console
	logger  *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithPersistLogger sets a custom logger for the persist step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a PersistStep.
func NewPersistStep(w Persister, console *report.Console, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		writer:  w,
		console: console,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do calls the writer once per tag kind.
func (s *PersistStep) Do(_ context.Context, run *model.Run) error {
	for _, kind := range run.Results.Kinds() {
		records, _ := run.Results.Get(kind)
		if len(records) == 0 {
			continue
		}

		result := s.writer.Persist(records, run.URL, kind)
		for _, path := range result.Files {
			s.console.Saved(path)
		}
		run.Files = append(run.Files, result.Files...)

		if result.Failed() {
			run.PersistFailures++
			for _, err := range result.Failures {
				s.console.SaveFailed(err)
			}
			s.logger.Warn("some files were not saved",
				"tag", kind,
				"failures", len(result.Failures),
			)
		}
	}
	return nil
}

// RecordStep stores the run in the history database.
// A history failure is logged and does not fail the run.
type RecordStep struct {
	recorder Recorder
	console  *report.Console
	logger   *slog.Logger
}

// RecordStepOption configures a RecordStep.
type RecordStepOption func(*RecordStep)

// WithRecordLogger sets a custom logger for the record step.
func WithRecordLogger(logger *slog.Logger) RecordStepOption {
	return func(s *RecordStep) {
		s.logger = logger
	}
}

// NewRecordStep creates a RecordStep.
func NewRecordStep(r Recorder, console *report.Console, opts ...RecordStepOption) *RecordStep {
	s := &RecordStep{
		recorder: r,
		console:  console,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *RecordStep) Name() string {
	return "record"
}

// Do records the run.
func (s *RecordStep) Do(ctx context.Context, run *model.Run) error {
	id, err := s.recorder.RecordRun(ctx, run)
	if err != nil {
		s.logger.Warn("failed to record run", "url", run.URL, "error", err)
		return nil
	}
	s.console.Recorded(id)
	return nil
}

// DefaultPipelineConfig holds the collaborators of a standard scrape.
type DefaultPipelineConfig struct {
	// Pause is the politeness delay before the request.
	Pause time.Duration

	// Fetcher performs the request. Required.
	Fetcher Fetcher

	// Extractor builds the records. Required.
	Extractor Extractor

	// Persister writes files. Nil disables the persist step.
	Persister Persister

	// Recorder stores the run. Nil disables the record step.
	Recorder Recorder

	// Console receives the progress trace.
	Console *report.Console

	// Logger is passed to the pipeline and its steps.
	Logger *slog.Logger
}

// DefaultPipeline creates the standard scrape pipeline:
// delay, fetch, content_type_guard, extract, preview, then persist and
// record when configured.
func DefaultPipeline(cfg DefaultPipelineConfig) *Pipeline {
	if cfg.Console == nil {
		cfg.Console = report.NewConsole(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := New(WithLogger(cfg.Logger))
	p.AddSteps(
		NewDelayStep(cfg.Pause, cfg.Console),
		NewFetchStep(cfg.Fetcher, cfg.Console),
		NewContentTypeGuardStep(cfg.Console),
		NewExtractStep(cfg.Extractor, cfg.Console),
		NewPreviewStep(cfg.Console),
	)
	if cfg.Persister != nil {
		p.AddStep(NewPersistStep(cfg.Persister, cfg.Console, WithPersistLogger(cfg.Logger)))
	}
	if cfg.Recorder != nil {
		p.AddStep(NewRecordStep(cfg.Recorder, cfg.Console, WithRecordLogger(cfg.Logger)))
	}
	return p
}
