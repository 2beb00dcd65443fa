package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/tagscrape/internal/model"
)

// MarkdownWriter outputs run summaries in Markdown format, one table per
// tag kind, for pasting into issues or notes.
type MarkdownWriter struct {
	baseWriter

	// maxRows limits the rows of each tag table. Zero means no limit.
	maxRows int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMaxRows limits the number of rows per tag table.
func WithMaxRows(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		if n >= 0 {
			w.maxRows = n
		}
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)
	w.writeResults(md, run)
	w.writeFiles(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and the page information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("Scrape Report")
	md.PlainText("")

	rows := [][]string{
		{"URL", "`" + run.URL + "`"},
		{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Tags", "`" + strings.Join(run.TagKinds, "`, `") + "`"},
		{"Status", w.getStatusText(run)},
	}
	if doc := run.Document; doc != nil {
		if doc.FinalURL != "" && doc.FinalURL != run.URL {
			rows = append(rows, []string{"Final URL", "`" + doc.FinalURL + "`"})
		}
		rows = append(rows,
			[]string{"HTTP status", strconv.Itoa(doc.StatusCode)},
			[]string{"Content type", orDash(doc.ContentType)},
		)
		if doc.Hash != "" {
			rows = append(rows, []string{"SHA3-256", "`" + doc.Hash + "`"})
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// getStatusText returns the status text based on run state.
func (w *MarkdownWriter) getStatusText(run *model.Run) string {
	switch {
	case run.Err != nil:
		return "❌ Failed - " + escapeCell(run.Err.Error())
	case run.PersistFailures > 0:
		return "⚠️ Complete (some files not saved)"
	default:
		return "✅ Complete"
	}
}

// writeSummary writes the per-kind counts and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *model.Run) {
	md.H2("Summary")
	md.PlainText("")

	if run.Results.IsEmpty() {
		md.Warningf("No data was scraped from %s.", run.URL)
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, run.Results.Len()+1)
	for _, kind := range run.Results.Kinds() {
		records, _ := run.Results.Get(kind)
		rows = append(rows, []string{"`" + kind + "`", strconv.Itoa(len(records))})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(run.Results.Total()) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Tag", "Records"},
		Rows:   rows,
	})
	md.PlainText("")

	if run.Results.Len() > 1 && run.Results.Total() > 0 {
		w.writePieChart(md, run.Results)
	}

	if doc := run.Document; doc != nil && doc.Truncated {
		md.Note("The page exceeded the body size limit; only the first part was parsed.")
		md.PlainText("")
	}
	if run.Results.Total() == 0 {
		md.Tip("None of the requested tags were found. Inspect the page to verify its structure.")
		md.PlainText("")
	}
}

// writePieChart writes a mermaid pie chart of records per tag kind.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, rs *model.ResultSet) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Records per Tag"),
		piechart.WithShowData(true),
	)
	for _, kind := range rs.Kinds() {
		records, _ := rs.Get(kind)
		if len(records) > 0 {
			chart.LabelAndIntValue(kind, uint64(len(records)))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeResults writes one table per tag kind.
func (w *MarkdownWriter) writeResults(md *markdown.Markdown, run *model.Run) {
	for _, kind := range run.Results.Kinds() {
		records, _ := run.Results.Get(kind)
		md.H2("<" + kind + ">")
		md.PlainText("")

		if len(records) == 0 {
			md.PlainTextf("No <%s> tags found on this page.", kind)
			md.PlainText("")
			continue
		}

		shown := records
		if w.maxRows > 0 && len(shown) > w.maxRows {
			shown = shown[:w.maxRows]
		}

		md.Table(markdown.TableSet{
			Header: tableHeader(model.KindOf(kind)),
			Rows:   tableRows(shown),
		})
		md.PlainText("")

		if len(shown) < len(records) {
			md.PlainTextf("... and %d more", len(records)-len(shown))
			md.PlainText("")
		}
	}
}

// tableHeader returns the columns shown for a kind. The page URL is the
// same on every row and is left out.
func tableHeader(kind model.Kind) []string {
	switch kind {
	case model.KindAnchor:
		return []string{"#", "Text", "Href"}
	case model.KindImage:
		return []string{"#", "Alt", "Src"}
	default:
		return []string{"#", "Text"}
	}
}

func tableRows(records []model.Record) [][]string {
	rows := make([][]string, len(records))
	for i, r := range records {
		order := strconv.Itoa(r.Order)
		switch r.Kind {
		case model.KindAnchor:
			rows[i] = []string{order, cell(r.Text), cell(derefOrDash(r.Href))}
		case model.KindImage:
			rows[i] = []string{order, cell(r.Alt), cell(derefOrDash(r.Src))}
		default:
			rows[i] = []string{order, cell(r.Text)}
		}
	}
	return rows
}

// writeFiles lists the files written by the run.
func (w *MarkdownWriter) writeFiles(md *markdown.Markdown, run *model.Run) {
	if len(run.Files) == 0 && run.PersistFailures == 0 {
		return
	}

	md.H2("Files")
	md.PlainText("")
	if len(run.Files) > 0 {
		md.BulletList(run.Files...)
		md.PlainText("")
	}
	if run.PersistFailures > 0 {
		md.Warningf("%d file(s) could not be written. Check the log for details.", run.PersistFailures)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [tagscrape](https://github.com/nao1215/tagscrape)*")
}

// cell prepares scraped text for a table cell.
func cell(s string) string {
	return escapeCell(Truncate(s, PreviewLength))
}

// escapeCell keeps a value on one line and stops it from closing the cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func derefOrDash(s *string) string {
	if s == nil {
		return "-"
	}
	return orDash(*s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
