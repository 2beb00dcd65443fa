// Package main provides the entry point for the tagscrape CLI.
//
// tagscrape fetches a single web page, extracts the requested tag kinds
// (headings, paragraphs, links and images) and saves them as CSV and JSON.
//
// Usage:
//
//	tagscrape scrape <url>
//	tagscrape scrape -t h1 -t p <url>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
