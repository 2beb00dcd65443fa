package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/nao1215/tagscrape/internal/config"
	"github.com/nao1215/tagscrape/internal/database"
	"github.com/nao1215/tagscrape/internal/extract"
	"github.com/nao1215/tagscrape/internal/fetcher"
	"github.com/nao1215/tagscrape/internal/log"
	"github.com/nao1215/tagscrape/internal/model"
	"github.com/nao1215/tagscrape/internal/persist"
	"github.com/nao1215/tagscrape/internal/report"
	"github.com/nao1215/tagscrape/internal/scraper"
	"github.com/nao1215/tagscrape/internal/tor"
	"github.com/spf13/cobra"
)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrape tags from a web page",
		Long: `Scrape fetches one page and extracts the requested tag kinds.

The request is sent after a politeness pause with browser-like headers.
For every tag kind a numbered preview is printed and, unless --no-save is
given, a CSV and a JSON file named <host>_<tag>_scrape_<timestamp> are
written to the output directory. Tag kinds without matches write no files.

Supported tag kinds: h1-h6, p, a (text and href) and img (alt and src).
Other tag names are saved as plain text unless --unknown says otherwise.

Examples:
  # Scrape <h2> headings (the default)
  tagscrape scrape https://example.com

  # Scrape headings and paragraphs without waiting
  tagscrape scrape -t h1 -t p --pause 0 https://example.com

  # Links and images into ./out, summary as Markdown
  tagscrape scrape -t a,img -o out -f markdown https://example.com

  # Through an existing Tor proxy, recording the run in the history
  tagscrape scrape --socks5 127.0.0.1:9050 --record http://<v3-address>.onion/

Configuration file (.tagscrape) example:
  defaults:
    pause: 3s
  sites:
    example.com:
      tags: [h1, p]
      cookie: "session_id=abc123"`,
		Args: cobra.ExactArgs(1),
		RunE: runScrapeCmd,
	}

	// Extraction flags
	cmd.Flags().StringArrayP("tags", "t", []string{config.DefaultTag},
		"Tag kinds to extract (repeatable or comma-separated)")
	cmd.Flags().String("unknown", string(model.UnknownAsText),
		"How to handle tag kinds without dedicated columns: text, skip or reject")

	// Request flags
	cmd.Flags().DurationP("pause", "p", config.DefaultPause,
		"Politeness delay before the request")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Timeout for the whole HTTP exchange (0 disables)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of response body bytes to read")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with the request")

	// Transport flags
	cmd.Flags().String("socks5", "",
		"Send the request through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and send the request through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Output flags
	cmd.Flags().Bool("no-save", false,
		"Do not write CSV and JSON files")
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory for CSV and JSON files (created if missing)")
	cmd.Flags().StringP("format", "f", config.FormatText,
		"Console summary format: text, markdown or json")
	cmd.Flags().Bool("record", false,
		"Record the run in the history database")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .tagscrape in current or home directory)")

	return cmd
}

func runScrapeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, getPersistentBool(cmd, "log-json"))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScrape(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getPersistentBool reads a boolean flag from the command or the root.
// It returns false when the flag is not defined.
func getPersistentBool(cmd *cobra.Command, name string) bool {
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		value, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return value
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	return getPersistentBool(cmd, "verbose")
}

// buildConfig creates a Config from defaults, the configuration file, the
// environment and the flags, in increasing order of precedence. Flags only
// override when they were set on the command line.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	if len(args) > 0 {
		cfg.URL = args[0]
	}
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit path that does not exist is an error; otherwise a missing
	// file just means no site settings.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}
	cfg.ApplySite(cfg.SiteConfigs.GetSiteConfig(cfg.URL))

	env, err := config.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	cfg.ApplyEnv(env)

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies every flag that was explicitly set into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("tags") {
		var tags []string
		if tags, err = flags.GetStringArray("tags"); err != nil {
			return err
		}
		cfg.TagKinds = config.ParseTagKinds(tags)
	}
	if flags.Changed("unknown") {
		var policy string
		if policy, err = flags.GetString("unknown"); err != nil {
			return err
		}
		cfg.UnknownPolicy = model.UnknownPolicy(policy)
	}
	if flags.Changed("pause") {
		if cfg.Pause, err = flags.GetDuration("pause"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("max-body-size") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return err
		}
	}
	if flags.Changed("socks5") {
		if cfg.SOCKS5Proxy, err = flags.GetString("socks5"); err != nil {
			return err
		}
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return err
	}
	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return err
	}
	cfg.Save = !noSave
	if flags.Changed("output") {
		if cfg.OutputDir, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	if cfg.Format, err = flags.GetString("format"); err != nil {
		return err
	}
	if cfg.Record, err = flags.GetBool("record"); err != nil {
		return err
	}
	return nil
}

// setupLogger creates the stderr logger. Secrets in attributes are redacted.
func setupLogger(w io.Writer, verbose, jsonLogs bool) *slog.Logger {
	if jsonLogs {
		return log.NewSecureJSONLogger(w, verbose)
	}
	return log.NewSecureLogger(w, verbose)
}

// runScrape executes one scrape run described by cfg. Only setup problems
// (proxy, Tor, database) are returned; a failed run is reported on the
// console and in the summary.
func runScrape(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, errOut io.Writer) error {
	logger.Info("starting scrape",
		"url", cfg.URL,
		"tags", cfg.TagKinds,
		"pause", cfg.Pause,
		"save", cfg.Save,
		"record", cfg.Record,
	)

	transport, cleanup, err := setupTransport(ctx, cfg, logger, errOut)
	if err != nil {
		return err
	}
	defer cleanup()

	var db *database.HistoryDB
	if cfg.Record {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	consoleOut := out
	if cfg.Format == config.FormatJSON {
		consoleOut = io.Discard
	}
	console := report.NewConsole(consoleOut, report.WithSpinner(consoleOut == out && isTerminal(out)))

	opts := []scraper.Option{
		scraper.WithFetcher(fetcher.New(
			fetcher.WithUserAgent(cfg.UserAgent),
			fetcher.WithTimeout(cfg.Timeout),
			fetcher.WithHeaders(cfg.Headers),
			fetcher.WithCookie(cfg.Cookie),
			fetcher.WithMaxBodySize(cfg.MaxBodySize),
			fetcher.WithTransport(transport),
			fetcher.WithLogger(logger),
		)),
		scraper.WithExtractor(extract.New(
			extract.WithUnknownPolicy(cfg.UnknownPolicy),
			extract.WithLogger(logger),
		)),
		scraper.WithPersister(persist.NewWriter(
			persist.WithOutputDir(cfg.OutputDir),
			persist.WithLogger(logger),
		)),
		scraper.WithConsole(console),
		scraper.WithLogger(logger),
		scraper.WithProxied(transport != nil),
	}
	// A nil *HistoryDB must not become a non-nil Recorder.
	if db != nil {
		opts = append(opts, scraper.WithRecorder(db))
	}

	if cfg.Format == config.FormatText {
		console.Banner(cfg.URL, cfg.TagKinds, cfg.Pause)
	}

	run, err := scraper.New(opts...).Run(ctx, cfg.URL, cfg.TagKinds, cfg.Pause, cfg.Save)
	if err != nil {
		return err
	}

	if _, err := newSummaryWriter(cfg, out).Write(run); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// newSummaryWriter returns the writer for the configured format.
func newSummaryWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch cfg.Format {
	case config.FormatJSON:
		return report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case config.FormatMarkdown:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
}

// setupTransport returns the proxy transport for cfg, or nil for a direct
// connection. cleanup is always safe to call.
func setupTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger, errOut io.Writer) (http.RoundTripper, func(), error) {
	noop := func() {}

	switch {
	case cfg.SOCKS5Proxy != "":
		proxy, err := tor.NewProxy(cfg.SOCKS5Proxy)
		if err != nil {
			return nil, noop, fmt.Errorf("invalid SOCKS5 proxy: %w", err)
		}
		if status := proxy.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, noop, fmt.Errorf("SOCKS5 proxy check failed: %s (make sure a proxy is running at %s)",
				status, cfg.SOCKS5Proxy)
		}
		logger.Info("SOCKS5 proxy connection verified", "address", proxy.Address())
		return proxy.Transport(), noop, nil

	case cfg.UseTor:
		return startEmbeddedTor(ctx, cfg, logger, errOut)

	default:
		return nil, noop, nil
	}
}

// startEmbeddedTor starts the Tor daemon and returns a transport through it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, errOut io.Writer) (http.RoundTripper, func(), error) {
	fmt.Fprintln(errOut, "Starting embedded Tor daemon...")
	fmt.Fprintf(errOut, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, func() {}, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	cleanup := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := embeddedTor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	proxy, err := embeddedTor.Proxy()
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("failed to create Tor proxy: %w", err)
	}
	if status := proxy.CheckConnection(ctx); status != tor.ProxyStatusOK {
		cleanup()
		return nil, func() {}, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}

	logger.Info("embedded Tor daemon started", "socksAddr", embeddedTor.SocksAddr())
	fmt.Fprintf(errOut, "Embedded Tor daemon started (SOCKS proxy: %s)\n\n", embeddedTor.SocksAddr())

	return proxy.Transport(), cleanup, nil
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
