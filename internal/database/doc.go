// Package database stores the scrape history in SQLite.
//
// Each recorded run keeps the page metadata, the content hash, per-tag
// counts and the extracted records, so earlier results can be listed and
// inspected without scraping again. The driver is modernc.org/sqlite,
// which needs no cgo.
package database
