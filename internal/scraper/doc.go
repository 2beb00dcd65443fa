// Package scraper is the entry point of a scrape run.
//
// Scrape validates its arguments, runs the pipeline and turns any run
// failure into console diagnostics plus an empty result set. Only
// argument errors are returned to the caller.
package scraper
