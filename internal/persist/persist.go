package persist

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/tagscrape/internal/model"
)

// timestampLayout is YYYYMMDD-HHMMSS.
const timestampLayout = "20060102-150405"

// Result reports what one Persist call wrote.
type Result struct {
	// Files are the paths written successfully, CSV first.
	Files []string

	// Failures holds one error per file that could not be written.
	Failures []error
}

// Failed reports whether any file could not be written.
func (r Result) Failed() bool {
	return len(r.Failures) > 0
}

// Writer writes record files into one directory.
type Writer struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithOutputDir sets the directory files are written to. It is created
// on first write if missing.
func WithOutputDir(dir string) Option {
	return func(w *Writer) {
		if dir != "" {
			w.dir = dir
		}
	}
}

// WithClock replaces the clock used for file name timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWriter creates a Writer for the current working directory.
func NewWriter(opts ...Option) *Writer {
	w := &Writer{
		dir:    ".",
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Persist writes records to <base>.csv and <base>.json, where base is
// derived by BaseName. Empty records are a no-op. A failure on one file
// does not prevent writing the other.
func (w *Writer) Persist(records []model.Record, sourceURL, tagKind string) Result {
	result := Result{Files: make([]string, 0, 2)}
	if len(records) == 0 {
		return result
	}

	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		w.logger.Error("failed to create output directory", "dir", w.dir, "error", err)
		result.Failures = append(result.Failures, fmt.Errorf("failed to create output directory %s: %w", w.dir, err))
		return result
	}

	base := filepath.Join(w.dir, BaseName(sourceURL, tagKind, w.now()))

	csvPath := base + ".csv"
	if err := writeCSV(csvPath, records); err != nil {
		w.logger.Error("failed to write CSV", "path", csvPath, "tag", tagKind, "error", err)
		result.Failures = append(result.Failures, fmt.Errorf("failed to write %s: %w", csvPath, err))
	} else {
		result.Files = append(result.Files, csvPath)
	}

	jsonPath := base + ".json"
	if err := writeJSON(jsonPath, records); err != nil {
		w.logger.Error("failed to write JSON", "path", jsonPath, "tag", tagKind, "error", err)
		result.Failures = append(result.Failures, fmt.Errorf("failed to write %s: %w", jsonPath, err))
	} else {
		result.Files = append(result.Files, jsonPath)
	}

	return result
}

// BaseName returns "{host}_{tagKind}_scrape_{YYYYMMDD-HHMMSS}" where host
// is the part of sourceURL after "//" up to the next "/", "?" or "#",
// with every "." replaced by "_".
func BaseName(sourceURL, tagKind string, t time.Time) string {
	host := sourceURL
	if _, after, found := strings.Cut(host, "//"); found {
		host = after
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	host = strings.ReplaceAll(host, ".", "_")
	return fmt.Sprintf("%s_%s_scrape_%s", host, tagKind, t.Format(timestampLayout))
}

// writeCSV writes a header row taken from the first record followed by
// one row per record.
func writeCSV(path string, records []model.Record) (err error) {
	header := records[0].Fields()
	for _, r := range records[1:] {
		if !slices.Equal(header, r.Fields()) {
			return model.ErrSchemaMismatch
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // output files are meant to be shared
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	cw := csv.NewWriter(f)
	cw.UseCRLF = true
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeJSON writes records as a 2-space indented array. Non-ASCII and
// HTML characters are written as-is.
func writeJSON(path string, records []model.Record) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // output files are meant to be shared
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
