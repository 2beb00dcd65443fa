// Package model defines the core data structures used throughout tagscrape.
//
// This package contains the following main types:
//   - Kind: The schema variant selected for a requested tag kind
//   - Record: One extracted element, shaped by its Kind
//   - ResultSet: The ordered mapping from tag kind to its records
//   - Document: A fetched page together with its response metadata
//   - Run: The state threaded through the scrape pipeline
//
// Models live in their own package so that the extractor, the file writer,
// the console reporter and the history database can share them without
// import cycles.
package model
