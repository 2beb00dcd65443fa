package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/tagscrape/internal/model"
)

const (
	// defaultSampleSize is how many records the closing sample shows.
	defaultSampleSize = 3

	// sampleLength is the number of characters shown per sample record.
	sampleLength = 50
)

// SimpleWriter prints the short closing summary of a run: a sample of the
// first records, or a hint to look at the trace when nothing was scraped.
type SimpleWriter struct {
	baseWriter

	// sampleSize is the number of records in the sample.
	sampleSize int

	// verbose adds the tag kind and per-kind counts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithSampleSize sets how many records are shown.
func WithSampleSize(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		if n > 0 {
			w.sampleSize = n
		}
	}
}

// WithVerbose enables verbose output with per-kind counts.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		sampleSize: defaultSampleSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the closing summary in human-readable format.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	if run.Results.Total() == 0 {
		sb.WriteString("\nNo data was scraped - check the messages above for issues\n")
		return w.output.Write([]byte(sb.String()))
	}

	sb.WriteString("\nDone! Here's a sample of what we found:\n")
	for _, r := range firstRecords(run.Results, w.sampleSize) {
		if w.verbose {
			sb.WriteString(fmt.Sprintf("  [%s] %d. %s\n", r.Type, r.Order, Truncate(r.Preview(), sampleLength)))
			continue
		}
		sb.WriteString(fmt.Sprintf("  %d. %s\n", r.Order, Truncate(r.Preview(), sampleLength)))
	}

	if w.verbose {
		sb.WriteString("\n")
		for _, kind := range run.Results.Kinds() {
			records, _ := run.Results.Get(kind)
			sb.WriteString(fmt.Sprintf("  %-6s %d\n", kind, len(records)))
		}
		if len(run.Files) > 0 {
			sb.WriteString(fmt.Sprintf("  files  %d\n", len(run.Files)))
		}
	}

	return w.output.Write([]byte(sb.String()))
}
