package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/tagscrape/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "tagscrape.db"

// timeLayout is used for started_at. Fixed-width fractions keep the text
// sortable.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// HistoryDB records scrape runs.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error
// is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a scrape with --record first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		started_at TEXT NOT NULL,
		final_url TEXT,
		status_code INTEGER,
		content_type TEXT,
		content_hash TEXT,
		tag_kinds TEXT NOT NULL,
		counts TEXT NOT NULL,
		total INTEGER NOT NULL,
		files TEXT NOT NULL,
		persist_failures INTEGER NOT NULL DEFAULT 0,
		results_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_host ON runs(host);
	CREATE INDEX IF NOT EXISTS idx_runs_url ON runs(url);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunEntry is one recorded run.
type RunEntry struct {
	ID              int64            `json:"id"`
	URL             string           `json:"url"`
	Host            string           `json:"host"`
	StartedAt       time.Time        `json:"startedAt"`
	FinalURL        string           `json:"finalUrl,omitempty"`
	StatusCode      int              `json:"statusCode,omitempty"`
	ContentType     string           `json:"contentType,omitempty"`
	Hash            string           `json:"hash,omitempty"`
	TagKinds        []string         `json:"tagKinds"`
	Counts          map[string]int   `json:"counts"`
	Total           int              `json:"total"`
	Files           []string         `json:"files"`
	PersistFailures int              `json:"persistFailures"`
	Results         *model.ResultSet `json:"results,omitempty"`
}

// RecordRun stores run and returns its ID.
func (hdb *HistoryDB) RecordRun(ctx context.Context, run *model.Run) (int64, error) {
	results := run.Results
	if results == nil {
		results = model.NewResultSet()
	}

	counts := make(map[string]int, results.Len())
	for _, kind := range results.Kinds() {
		records, _ := results.Get(kind)
		counts[kind] = len(records)
	}

	tagKindsJSON, err := json.Marshal(nonNil(run.TagKinds))
	if err != nil {
		return 0, fmt.Errorf("failed to serialize tag kinds: %w", err)
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize counts: %w", err)
	}
	filesJSON, err := json.Marshal(nonNil(run.Files))
	if err != nil {
		return 0, fmt.Errorf("failed to serialize files: %w", err)
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize results: %w", err)
	}

	var finalURL, contentType, hash string
	var statusCode int
	if doc := run.Document; doc != nil {
		finalURL = doc.FinalURL
		statusCode = doc.StatusCode
		contentType = doc.ContentType
		hash = doc.Hash
	}

	query := `
	INSERT INTO runs (url, host, started_at, final_url, status_code, content_type, content_hash,
		tag_kinds, counts, total, files, persist_failures, results_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := hdb.db.ExecContext(ctx, query,
		run.URL,
		HostOf(run.URL),
		run.StartedAt.UTC().Format(timeLayout),
		finalURL,
		statusCode,
		contentType,
		hash,
		string(tagKindsJSON),
		string(countsJSON),
		results.Total(),
		string(filesJSON),
		run.PersistFailures,
		string(resultsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	return result.LastInsertId()
}

// ListRuns returns recorded runs newest first, without their records.
// An empty host lists every host. A limit of zero or less means no limit.
func (hdb *HistoryDB) ListRuns(ctx context.Context, host string, limit int) ([]RunEntry, error) {
	query := `
	SELECT id, url, host, started_at, final_url, status_code, content_type, content_hash,
		tag_kinds, counts, total, files, persist_failures
	FROM runs
	`
	args := make([]any, 0, 2)
	if host != "" {
		query += " WHERE host = ?"
		args = append(args, strings.ToLower(host))
	}
	query += " ORDER BY started_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	entries := make([]RunEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

// GetRun returns one run including its records.
// ErrRunNotFound is returned when id does not exist.
func (hdb *HistoryDB) GetRun(ctx context.Context, id int64) (*RunEntry, error) {
	query := `
	SELECT id, url, host, started_at, final_url, status_code, content_type, content_hash,
		tag_kinds, counts, total, files, persist_failures, results_json
	FROM runs
	WHERE id = ?
	`

	var resultsJSON string
	entry, err := scanEntry(hdb.db.QueryRowContext(ctx, query, id), &resultsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	results := model.NewResultSet()
	if err := json.Unmarshal([]byte(resultsJSON), results); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	entry.Results = results

	return entry, nil
}

// PreviousHash returns the page hash of the run of the same URL recorded
// just before e. found is false when e is the first recorded run of its URL.
func (hdb *HistoryDB) PreviousHash(ctx context.Context, e RunEntry) (hash string, found bool, err error) {
	query := `
	SELECT content_hash
	FROM runs
	WHERE url = ? AND (started_at < ? OR (started_at = ? AND id < ?))
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`
	startedAt := e.StartedAt.UTC().Format(timeLayout)

	var h sql.NullString
	err = hdb.db.QueryRowContext(ctx, query, e.URL, startedAt, startedAt, e.ID).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up previous run: %w", err)
	}
	return h.String, true, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry reads the common run columns followed by extra.
func scanEntry(row rowScanner, extra ...any) (*RunEntry, error) {
	var entry RunEntry
	var startedAt, tagKindsJSON, countsJSON, filesJSON string
	var finalURL, contentType, contentHash sql.NullString
	var statusCode sql.NullInt64

	dest := []any{
		&entry.ID, &entry.URL, &entry.Host, &startedAt,
		&finalURL, &statusCode, &contentType, &contentHash,
		&tagKindsJSON, &countsJSON, &entry.Total, &filesJSON, &entry.PersistFailures,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	entry.StartedAt = parseTimestamp(startedAt)
	entry.FinalURL = finalURL.String
	entry.StatusCode = int(statusCode.Int64)
	entry.ContentType = contentType.String
	entry.Hash = contentHash.String

	if err := json.Unmarshal([]byte(tagKindsJSON), &entry.TagKinds); err != nil {
		return nil, fmt.Errorf("failed to parse tag kinds: %w", err)
	}
	if err := json.Unmarshal([]byte(countsJSON), &entry.Counts); err != nil {
		return nil, fmt.Errorf("failed to parse counts: %w", err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &entry.Files); err != nil {
		return nil, fmt.Errorf("failed to parse files: %w", err)
	}

	return &entry, nil
}

// HostOf returns the lower-cased host name of rawURL, or rawURL itself
// when it cannot be parsed.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Hostname())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when s matches no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
