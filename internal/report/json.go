package report

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/tagscrape/internal/model"
)

// JSONWriter outputs run summaries in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// version is written into every summary.
	version string

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	// Empty means compact output.
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion sets the tool version recorded in the summary.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is the machine-readable summary of one run.
type JSONReport struct {
	// Version is the tagscrape version that produced the summary.
	Version string `json:"version,omitempty"`

	URL         string    `json:"url"`
	FinalURL    string    `json:"finalUrl,omitempty"`
	StatusCode  int       `json:"statusCode,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Hash        string    `json:"hash,omitempty"`
	Truncated   bool      `json:"truncated,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	TagKinds    []string  `json:"tagKinds"`

	// Counts maps each tag kind to its number of records.
	Counts map[string]int `json:"counts"`

	// Results holds the records in request order.
	Results *model.ResultSet `json:"results"`

	Files           []string `json:"files"`
	PersistFailures int      `json:"persistFailures"`

	// Error is the message of the failure that emptied the results.
	Error string `json:"error,omitempty"`
}

// NewJSONReport builds the summary of run.
func NewJSONReport(run *model.Run, version string) *JSONReport {
	results := run.Results
	if results == nil {
		results = model.NewResultSet()
	}

	r := &JSONReport{
		Version:         version,
		URL:             run.URL,
		StartedAt:       run.StartedAt,
		TagKinds:        run.TagKinds,
		Counts:          make(map[string]int, results.Len()),
		Results:         results,
		Files:           run.Files,
		PersistFailures: run.PersistFailures,
	}
	if r.TagKinds == nil {
		r.TagKinds = []string{}
	}
	if r.Files == nil {
		r.Files = []string{}
	}
	for _, kind := range results.Kinds() {
		records, _ := results.Get(kind)
		r.Counts[kind] = len(records)
	}
	if doc := run.Document; doc != nil {
		r.FinalURL = doc.FinalURL
		r.StatusCode = doc.StatusCode
		r.ContentType = doc.ContentType
		r.Hash = doc.Hash
		r.Truncated = doc.Truncated
	}
	if run.Err != nil {
		r.Error = run.Err.Error()
	}
	return r
}

// Write outputs the run summary in JSON format.
func (w *JSONWriter) Write(run *model.Run) (int, error) {
	return w.writeJSON(NewJSONReport(run, w.version))
}

// writeJSON encodes v and writes it to the output with a trailing newline.
// HTML characters are kept as-is so scraped text reads naturally.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.indentString != "" || w.indentPrefix != "" {
		enc.SetIndent(w.indentPrefix, w.indentString)
	}
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

