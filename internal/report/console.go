package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/nao1215/tagscrape/internal/model"
)

// PreviewLength is the number of characters of each record shown in the
// progress trace.
const PreviewLength = 60

// spinnerCharSet is the dot spinner, index 9 in spinner.CharSets.
const spinnerCharSet = 9

// troubleshootingHints are printed after any failed fetch.
var troubleshootingHints = []string{
	"Site blocked the scraper (try changing the user agent)",
	"Network problems (check your connection)",
	"Page structure changed (inspect element to verify)",
}

// Console prints the human-facing progress trace of a scrape run.
// It is not machine-parseable; structured output goes through Writer.
//
// A Console is used by a single run at a time and is not safe for
// concurrent use.
type Console struct {
	out     io.Writer
	spinner *spinner.Spinner
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithSpinner shows an animated spinner during the politeness delay and
// the request. Only enable it when out is a terminal.
func WithSpinner(enabled bool) ConsoleOption {
	return func(c *Console) {
		if !enabled {
			c.spinner = nil
			return
		}
		c.spinner = spinner.New(
			spinner.CharSets[spinnerCharSet],
			100*time.Millisecond,
			spinner.WithWriter(c.out),
		)
	}
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer, opts ...ConsoleOption) *Console {
	if out == nil {
		out = io.Discard
	}
	c := &Console{out: out}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Banner prints the configuration block shown before a run.
func (c *Console) Banner(url string, tagKinds []string, pause time.Duration) {
	c.println("\n=== Simple Web Scraper ===")
	c.printf("Configuration:\n- URL: %s\n- Tag: %s\n- Delay: %s\n\n",
		url, strings.Join(tagKinds, ", "), pause)
}

// Starting announces the start of a scrape.
func (c *Console) Starting(url string, tagKinds []string) {
	c.printf("\nStarting scrape of %s for %s tags...\n", url, formatTags(tagKinds))
}

// Waiting is shown while the politeness delay elapses.
func (c *Console) Waiting(d time.Duration) {
	if d <= 0 {
		return
	}
	c.spin(fmt.Sprintf(" Waiting %s before the request...", d))
}

// Requesting announces the HTTP request.
func (c *Console) Requesting() {
	c.stop()
	c.println("Making request...")
	c.spin(" Waiting for the response...")
}

// Parsing announces HTML parsing.
func (c *Console) Parsing() {
	c.stop()
	c.println("Parsing page content...")
}

// Truncated warns that only part of the body was parsed.
func (c *Console) Truncated(limit int64) {
	c.stop()
	c.printf("Warning: the page is larger than %d bytes, only the first part was parsed\n", limit)
}

// TagResult prints the preview and count for one tag kind.
func (c *Console) TagResult(tagKind string, records []model.Record) {
	c.stop()
	if len(records) == 0 {
		c.printf("No <%s> tags found on this page\n", tagKind)
		return
	}
	for _, r := range records {
		c.printf("  %d. %s\n", r.Order, Truncate(r.Preview(), PreviewLength))
	}
	c.printf("\nFound %d <%s> elements!\n", len(records), tagKind)
}

// NonHTML reports a response that was not an HTML page.
func (c *Console) NonHTML(contentType string) {
	c.stop()
	if contentType == "" {
		contentType = "none"
	}
	c.printf("Oops! Didn't get HTML back - maybe a redirect or error page? (content type: %s)\n", contentType)
}

// Failure prints the diagnostics for a failed run.
func (c *Console) Failure(err error) {
	c.stop()
	c.printf("\nScraping failed: %v\n", err)
	c.println("Common issues:")
	for _, hint := range troubleshootingHints {
		c.printf("- %s\n", hint)
	}
}

// Cancelled reports that the run was interrupted.
func (c *Console) Cancelled() {
	c.stop()
	c.println("\nScraping cancelled")
}

// Saved reports a file written by the persist step.
func (c *Console) Saved(path string) {
	c.stop()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		c.printf("Saved CSV: %s\n", path)
	case ".json":
		c.printf("Saved JSON: %s\n", path)
	default:
		c.printf("Saved: %s\n", path)
	}
}

// SaveFailed reports a file that could not be written.
func (c *Console) SaveFailed(err error) {
	c.stop()
	c.printf("Failed to save files: %v\n", err)
}

// Recorded reports the history entry of the run.
func (c *Console) Recorded(id int64) {
	c.stop()
	c.printf("Recorded run #%d in history\n", id)
}

// Done stops the spinner if it is running.
func (c *Console) Done() {
	c.stop()
}

func (c *Console) spin(suffix string) {
	if c.spinner == nil {
		return
	}
	c.spinner.Suffix = suffix
	c.spinner.Start()
}

func (c *Console) stop() {
	if c.spinner != nil && c.spinner.Active() {
		c.spinner.Stop()
	}
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...) //nolint:errcheck // console output is best effort
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.out, s) //nolint:errcheck // console output is best effort
}

// formatTags renders tag kinds as "<h1>, <p>".
func formatTags(tagKinds []string) string {
	parts := make([]string, len(tagKinds))
	for i, t := range tagKinds {
		parts[i] = "<" + t + ">"
	}
	return strings.Join(parts, ", ")
}
