// Package report renders scrape runs for people and tools.
//
// Console prints the progress trace while a run is in flight: the
// request, per-tag counts, short previews and the files written.
// The Writer implementations print a summary once the run is over:
//   - SimpleWriter: a short text sample of the first records
//   - MarkdownWriter: a Markdown document with one table per tag kind
//   - JSONWriter: the run summary as JSON for tool integration
//
// Report data lives in the model package. This package only formats it.
package report
