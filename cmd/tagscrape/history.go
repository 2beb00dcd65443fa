package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nao1215/tagscrape/internal/config"
	"github.com/nao1215/tagscrape/internal/database"
	"github.com/nao1215/tagscrape/internal/report"
	"github.com/spf13/cobra"
)

const (
	// defaultHistoryLimit is the number of runs listed when --limit is not given.
	defaultHistoryLimit = 20

	// showSampleSize is how many records per tag kind "history show" prints.
	showSampleSize = 10

	changeNew       = "new"
	changeSame      = "same"
	changeChanged   = "changed"
	changeUndecided = "-"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host]",
		Short: "List recorded scrape runs",
		Long: `History lists runs recorded with 'tagscrape scrape --record', newest first.

For each run the page hash is compared with the previous recorded run of
the same URL, so you can see whether the page changed between scrapes.

The database lives in the XDG data directory (~/.local/share/tagscrape)
unless TAGSCRAPE_DB_DIR is set.

Examples:
  # List the latest runs of every host
  tagscrape history

  # List runs of one host
  tagscrape history example.com

  # Show one run with its records
  tagscrape history show 12

  # Output JSON
  tagscrape history --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of runs to list (0 for all)")

	cmd.AddCommand(newHistoryShowCmd())

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded run with its records",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	var host string
	if len(args) > 0 {
		host = args[0]
	}

	out := cmd.OutOrStdout()
	db, err := openHistory()
	if errors.Is(err, errNoHistory) {
		if jsonOutput {
			fmt.Fprintln(out, "[]")
			return nil
		}
		fmt.Fprintln(out, "No runs recorded yet.")
		fmt.Fprintln(out, "\nUse 'tagscrape scrape --record <url>' to record a run.")
		return nil
	}
	if err != nil {
		return err
	}
	defer db.Close()

	return listRuns(cmd.Context(), db, out, host, limit, jsonOutput)
}

func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid run ID: %s", args[0])
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := openHistory()
	if errors.Is(err, errNoHistory) {
		return fmt.Errorf("%w: %d", database.ErrRunNotFound, id)
	}
	if err != nil {
		return err
	}
	defer db.Close()

	entry, err := db.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, entry)
	}
	printRun(out, entry)
	return nil
}

// errNoHistory means no run has been recorded in the database directory.
var errNoHistory = errors.New("no history database")

// openHistory opens the existing history database without creating it.
func openHistory() (*database.HistoryDB, error) {
	dbDir := config.XDGDataDir()
	env, err := config.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if env.DBDir != nil && *env.DBDir != "" {
		dbDir = *env.DBDir
	}

	if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); os.IsNotExist(err) {
		return nil, errNoHistory
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func listRuns(ctx context.Context, db *database.HistoryDB, out io.Writer, host string, limit int, jsonOutput bool) error {
	entries, err := db.ListRuns(ctx, host, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(out, entries)
	}

	if len(entries) == 0 {
		if host != "" {
			fmt.Fprintf(out, "No runs recorded for %s\n", host)
		} else {
			fmt.Fprintln(out, "No runs recorded yet.")
		}
		return nil
	}

	// A full page may have cut off older runs of a listed URL.
	var previous previousHashFunc
	if limit > 0 && len(entries) == limit {
		previous = func(e database.RunEntry) (string, bool, error) {
			return db.PreviousHash(ctx, e)
		}
	}
	changes := pageChanges(entries, previous)

	fmt.Fprintf(out, "Recorded runs (%d):\n\n", len(entries))
	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "Date", "Page", "Records", "URL"})
	for i, e := range entries {
		t.AppendRow(table.Row{
			e.ID,
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			changes[i],
			e.Total,
			report.Truncate(e.URL, 60),
		})
	}
	t.Render()
	fmt.Fprintln(out, "\nUse 'tagscrape history show <id>' to see the records of a run.")

	return nil
}

// previousHashFunc returns the hash of the run of the same URL recorded
// before e, and whether such a run exists.
type previousHashFunc func(e database.RunEntry) (string, bool, error)

// pageChanges compares the hash of each entry with the next older entry of
// the same URL. entries must be ordered newest first. When the oldest
// listed run of a URL has no older listed run, previous is asked for one;
// a nil previous means the list is complete.
func pageChanges(entries []database.RunEntry, previous previousHashFunc) []string {
	changes := make([]string, len(entries))
	for i, e := range entries {
		olderHash, found := "", false
		for _, older := range entries[i+1:] {
			if older.URL == e.URL {
				olderHash, found = older.Hash, true
				break
			}
		}
		if !found && previous != nil {
			var err error
			olderHash, found, err = previous(e)
			if err != nil {
				changes[i] = changeUndecided
				continue
			}
		}
		changes[i] = compareHash(e.Hash, olderHash, found)
	}
	return changes
}

func compareHash(hash, olderHash string, hasOlder bool) string {
	switch {
	case !hasOlder:
		return changeNew
	case hash == "" || olderHash == "":
		return changeUndecided
	case hash == olderHash:
		return changeSame
	default:
		return changeChanged
	}
}

func printRun(out io.Writer, e *database.RunEntry) {
	fmt.Fprintf(out, "Run #%d\n", e.ID)
	fmt.Fprintf(out, "  URL:          %s\n", e.URL)
	if e.FinalURL != "" && e.FinalURL != e.URL {
		fmt.Fprintf(out, "  Final URL:    %s\n", e.FinalURL)
	}
	fmt.Fprintf(out, "  Date:         %s\n", e.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Status:       %d\n", e.StatusCode)
	fmt.Fprintf(out, "  Content type: %s\n", e.ContentType)
	fmt.Fprintf(out, "  Hash:         %s\n", e.Hash)
	fmt.Fprintf(out, "  Tags:         %s\n", strings.Join(e.TagKinds, ", "))
	fmt.Fprintf(out, "  Records:      %d\n", e.Total)

	if len(e.Files) > 0 {
		fmt.Fprintln(out, "\nFiles:")
		for _, f := range e.Files {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}

	for _, kind := range e.Results.Kinds() {
		records, _ := e.Results.Get(kind)
		fmt.Fprintf(out, "\n<%s> (%d)\n", kind, len(records))
		for i, r := range records {
			if i >= showSampleSize {
				fmt.Fprintf(out, "  ... and %d more\n", len(records)-showSampleSize)
				break
			}
			fmt.Fprintf(out, "  %d. %s\n", r.Order, report.Truncate(r.Preview(), report.PreviewLength))
		}
	}
}

// newTable returns a table writer that renders to out.
func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
