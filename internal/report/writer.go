package report

import (
	"io"

	"github.com/nao1215/tagscrape/internal/model"
)

// Writer defines the interface for run summaries.
type Writer interface {
	// Write outputs the summary of run to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.Run) (int, error)
}

// MultiWriter writes a run summary to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(run *model.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Truncate shortens s to at most maxRunes characters and appends "..."
// when anything was cut. Counting is by rune so multi-byte text is never
// split.
func Truncate(s string, maxRunes int) string {
	if maxRunes < 0 {
		maxRunes = 0
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// firstRecords returns up to n records across all tag kinds, in the
// order the kinds were requested.
func firstRecords(rs *model.ResultSet, n int) []model.Record {
	out := make([]model.Record, 0, n)
	for _, kind := range rs.Kinds() {
		records, _ := rs.Get(kind)
		for _, r := range records {
			if len(out) == n {
				return out
			}
			out = append(out, r)
		}
	}
	return out
}
