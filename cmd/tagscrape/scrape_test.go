package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/tagscrape/internal/config"
	"github.com/nao1215/tagscrape/internal/model"
)

const testPage = `<html><body>
<h1>Welcome</h1>
<p>First paragraph</p>
<p>Second <b>paragraph</b></p>
<a href="/about">About us</a>
</body></html>`

// writeConfig writes a configuration file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".tagscrape")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func newPageServer(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewScrapeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScrapeCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "scrape <url>" {
			t.Errorf("expected use 'scrape <url>', got %q", cmd.Use)
		}
	})

	t.Run("requires exactly one argument", func(t *testing.T) {
		t.Parallel()
		if err := cmd.Args(cmd, []string{}); err == nil {
			t.Error("expected error for no arguments")
		}
		if err := cmd.Args(cmd, []string{"a", "b"}); err == nil {
			t.Error("expected error for two arguments")
		}
	})

	flags := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "tags", shorthand: "t", defValue: "[h2]"},
		{name: "pause", shorthand: "p", defValue: "2s"},
		{name: "output", shorthand: "o", defValue: "."},
		{name: "format", shorthand: "f", defValue: "text"},
		{name: "config", shorthand: "c", defValue: ""},
		{name: "no-save", defValue: "false"},
		{name: "unknown", defValue: "text"},
		{name: "timeout", defValue: "30s"},
		{name: "socks5", defValue: ""},
		{name: "tor", defValue: "false"},
		{name: "record", defValue: "false"},
	}
	for _, tt := range flags {
		t.Run("has "+tt.name+" flag", func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	const target = "https://www.example.com/news"

	t.Run("builds config with default values", func(t *testing.T) {
		t.Parallel()

		cmd := NewScrapeCmd()
		_ = cmd.Flags().Set("config", writeConfig(t, "sites: {}\n"))
		cfg, err := buildConfig(cmd, []string{target})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.URL != target {
			t.Errorf("URL = %q", cfg.URL)
		}
		if diff := cmp.Diff([]string{config.DefaultTag}, cfg.TagKinds); diff != "" {
			t.Errorf("TagKinds mismatch (-want +got):\n%s", diff)
		}
		if cfg.Pause != config.DefaultPause {
			t.Errorf("Pause = %v", cfg.Pause)
		}
		if !cfg.Save {
			t.Error("expected Save to be true")
		}
		if cfg.Format != config.FormatText {
			t.Errorf("Format = %q", cfg.Format)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config does not validate: %v", err)
		}
	})

	t.Run("flags override defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewScrapeCmd()
		_ = cmd.Flags().Set("config", writeConfig(t, "sites: {}\n"))
		_ = cmd.Flags().Set("tags", "H1,p")
		_ = cmd.Flags().Set("tags", "a")
		_ = cmd.Flags().Set("tags", "p")
		_ = cmd.Flags().Set("pause", "0s")
		_ = cmd.Flags().Set("no-save", "true")
		_ = cmd.Flags().Set("format", "json")
		_ = cmd.Flags().Set("unknown", "skip")
		_ = cmd.Flags().Set("output", "out")

		cfg, err := buildConfig(cmd, []string{target})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([]string{"h1", "p", "a"}, cfg.TagKinds); diff != "" {
			t.Errorf("TagKinds mismatch (-want +got):\n%s", diff)
		}
		if cfg.Pause != 0 {
			t.Errorf("Pause = %v, want 0", cfg.Pause)
		}
		if cfg.Save {
			t.Error("expected Save to be false")
		}
		if cfg.Format != config.FormatJSON {
			t.Errorf("Format = %q", cfg.Format)
		}
		if cfg.UnknownPolicy != model.UnknownSkip {
			t.Errorf("UnknownPolicy = %q", cfg.UnknownPolicy)
		}
		if cfg.OutputDir != "out" {
			t.Errorf("OutputDir = %q", cfg.OutputDir)
		}
	})

	t.Run("applies site config", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `defaults:
  pause: 1s
  headers:
    X-Default: "yes"
sites:
  example.com:
    tags: [h1, img]
    pause: 5s
    cookie: "session=abc"
    headers:
      Authorization: "Bearer token"
`)
		cmd := NewScrapeCmd()
		_ = cmd.Flags().Set("config", path)
		cfg, err := buildConfig(cmd, []string{target})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([]string{"h1", "img"}, cfg.TagKinds); diff != "" {
			t.Errorf("TagKinds mismatch (-want +got):\n%s", diff)
		}
		if cfg.Pause != 5*time.Second {
			t.Errorf("Pause = %v, want 5s", cfg.Pause)
		}
		if cfg.Cookie != "session=abc" {
			t.Errorf("Cookie = %q", cfg.Cookie)
		}
		wantHeaders := map[string]string{"X-Default": "yes", "Authorization": "Bearer token"}
		if diff := cmp.Diff(wantHeaders, cfg.Headers); diff != "" {
			t.Errorf("Headers mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("flags override site config", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "sites:\n  example.com:\n    tags: [h1]\n    pause: 5s\n")
		cmd := NewScrapeCmd()
		_ = cmd.Flags().Set("config", path)
		_ = cmd.Flags().Set("tags", "p")
		_ = cmd.Flags().Set("pause", "1s")

		cfg, err := buildConfig(cmd, []string{target})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"p"}, cfg.TagKinds); diff != "" {
			t.Errorf("TagKinds mismatch (-want +got):\n%s", diff)
		}
		if cfg.Pause != time.Second {
			t.Errorf("Pause = %v, want 1s", cfg.Pause)
		}
	})

	t.Run("returns error for missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewScrapeCmd()
		_ = cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := buildConfig(cmd, []string{target})
		if err == nil || !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("returns error for invalid config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewScrapeCmd()
		_ = cmd.Flags().Set("config", writeConfig(t, "sites: [unclosed\n"))
		_, err := buildConfig(cmd, []string{target})
		if err == nil || !strings.Contains(err.Error(), "failed to load config file") {
			t.Errorf("expected load error, got %v", err)
		}
	})
}

func TestBuildConfigEnvironment(t *testing.T) {
	path := writeConfig(t, "defaults:\n  pause: 5s\n  tags: [h1]\n")
	t.Setenv("TAGSCRAPE_PAUSE", "3s")
	t.Setenv("TAGSCRAPE_TAGS", "p,a")

	t.Run("environment overrides the config file", func(t *testing.T) {
		cmd := NewScrapeCmd()
		_ = cmd.Flags().Set("config", path)
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Pause != 3*time.Second {
			t.Errorf("Pause = %v, want 3s", cfg.Pause)
		}
		if diff := cmp.Diff([]string{"p", "a"}, cfg.TagKinds); diff != "" {
			t.Errorf("TagKinds mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("flags override the environment", func(t *testing.T) {
		cmd := NewScrapeCmd()
		_ = cmd.Flags().Set("config", path)
		_ = cmd.Flags().Set("pause", "0s")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Pause != 0 {
			t.Errorf("Pause = %v, want 0", cfg.Pause)
		}
	})

	t.Run("invalid environment value is an error", func(t *testing.T) {
		t.Setenv("TAGSCRAPE_TIMEOUT", "soon")
		cmd := NewScrapeCmd()
		_ = cmd.Flags().Set("config", path)
		if _, err := buildConfig(cmd, []string{"https://example.com"}); err == nil {
			t.Error("expected error for invalid TAGSCRAPE_TIMEOUT")
		}
	})
}

func TestGetVerboseFlag(t *testing.T) {
	t.Parallel()

	t.Run("returns false when flag not defined", func(t *testing.T) {
		t.Parallel()
		if getVerboseFlag(NewScrapeCmd()) {
			t.Error("expected false")
		}
	})

	t.Run("returns value from root persistent flag", func(t *testing.T) {
		t.Parallel()
		root := NewRootCmd()
		_ = root.PersistentFlags().Set("verbose", "true")
		scrape, _, err := root.Find([]string{"scrape"})
		if err != nil {
			t.Fatalf("failed to find scrape: %v", err)
		}
		if !getVerboseFlag(scrape) {
			t.Error("expected true")
		}
	})
}

func TestSetupLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	setupLogger(&buf, true, true).Debug("hello", "cookie", "secret-value")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON log line, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "secret-value") {
		t.Errorf("expected cookie to be redacted, got %q", buf.String())
	}

	buf.Reset()
	setupLogger(&buf, false, false).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be filtered, got %q", buf.String())
	}
}

// executeRoot runs the root command with args and returns stdout and the error.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestScrapeCommand(t *testing.T) {
	t.Parallel()

	t.Run("scrapes, previews and saves", func(t *testing.T) {
		t.Parallel()

		srv := newPageServer(t, "text/html; charset=utf-8", testPage)
		outDir := t.TempDir()

		out, err := executeRoot(t, "scrape",
			"-c", writeConfig(t, "sites: {}\n"),
			"--pause", "0s",
			"-o", outDir,
			"-t", "h1,p",
			srv.URL+"/index.html",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, want := range []string{
			"=== Simple Web Scraper ===",
			"  1. Welcome",
			"Found 1 <h1> elements!",
			"  2. Second paragraph",
			"Found 2 <p> elements!",
			"Saved CSV:",
			"Saved JSON:",
			"Done! Here's a sample of what we found:",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output does not contain %q:\n%s", want, out)
			}
		}

		files, err := filepath.Glob(filepath.Join(outDir, "*"))
		if err != nil {
			t.Fatalf("glob failed: %v", err)
		}
		if len(files) != 4 {
			t.Errorf("expected 4 files (CSV and JSON for h1 and p), got %v", files)
		}
	})

	t.Run("no-save writes nothing", func(t *testing.T) {
		t.Parallel()

		srv := newPageServer(t, "text/html", testPage)
		outDir := t.TempDir()

		if _, err := executeRoot(t, "scrape",
			"-c", writeConfig(t, "sites: {}\n"),
			"--pause", "0s",
			"--no-save",
			"-o", outDir,
			srv.URL,
		); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entries, err := os.ReadDir(outDir)
		if err != nil {
			t.Fatalf("failed to read dir: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected no files, got %d", len(entries))
		}
	})

	t.Run("json format prints only the summary", func(t *testing.T) {
		t.Parallel()

		srv := newPageServer(t, "text/html", testPage)

		out, err := executeRoot(t, "scrape",
			"-c", writeConfig(t, "sites: {}\n"),
			"--pause", "0s",
			"--no-save",
			"-f", "json",
			"-t", "a",
			srv.URL,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var summary struct {
			URL        string         `json:"url"`
			StatusCode int            `json:"statusCode"`
			Counts     map[string]int `json:"counts"`
			Files      []string       `json:"files"`
		}
		if err := json.Unmarshal([]byte(out), &summary); err != nil {
			t.Fatalf("output is not a single JSON document: %v\n%s", err, out)
		}
		if summary.URL != srv.URL {
			t.Errorf("url = %q", summary.URL)
		}
		if summary.StatusCode != http.StatusOK {
			t.Errorf("statusCode = %d", summary.StatusCode)
		}
		if diff := cmp.Diff(map[string]int{"a": 1}, summary.Counts); diff != "" {
			t.Errorf("counts mismatch (-want +got):\n%s", diff)
		}
		if len(summary.Files) != 0 {
			t.Errorf("expected no files, got %v", summary.Files)
		}
	})

	t.Run("markdown format prints a report", func(t *testing.T) {
		t.Parallel()

		srv := newPageServer(t, "text/html", testPage)

		out, err := executeRoot(t, "scrape",
			"-c", writeConfig(t, "sites: {}\n"),
			"--pause", "0s",
			"--no-save",
			"-f", "markdown",
			"-t", "h1",
			srv.URL,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "# Scrape Report") {
			t.Errorf("expected markdown report, got:\n%s", out)
		}
	})

	t.Run("non-HTML response yields no data", func(t *testing.T) {
		t.Parallel()

		srv := newPageServer(t, "application/json", `{"h1":"nope"}`)
		outDir := t.TempDir()

		out, err := executeRoot(t, "scrape",
			"-c", writeConfig(t, "sites: {}\n"),
			"--pause", "0s",
			"-o", outDir,
			srv.URL,
		)
		if err != nil {
			t.Fatalf("a failed run must not be a command error: %v", err)
		}
		if !strings.Contains(out, "Didn't get HTML back") {
			t.Errorf("expected non-HTML message, got:\n%s", out)
		}
		if !strings.Contains(out, "No data was scraped") {
			t.Errorf("expected empty summary, got:\n%s", out)
		}
		entries, _ := os.ReadDir(outDir)
		if len(entries) != 0 {
			t.Errorf("expected no files, got %d", len(entries))
		}
	})

	t.Run("HTTP error prints troubleshooting hints", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}))
		t.Cleanup(srv.Close)

		out, err := executeRoot(t, "scrape",
			"-c", writeConfig(t, "sites: {}\n"),
			"--pause", "0s",
			"--no-save",
			srv.URL,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Scraping failed:", "403", "Common issues:"} {
			if !strings.Contains(out, want) {
				t.Errorf("output does not contain %q:\n%s", want, out)
			}
		}
	})

	t.Run("invalid configuration is a command error", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			args []string
		}{
			{name: "non-http URL", args: []string{"ftp://example.com"}},
			{name: "invalid tag", args: []string{"-t", "p > b", "https://example.com"}},
			{name: "negative pause", args: []string{"--pause", "-1s", "https://example.com"}},
			{name: "unknown format", args: []string{"-f", "xml", "https://example.com"}},
			{name: "tor and socks5", args: []string{"--tor", "--socks5", "127.0.0.1:9050", "https://example.com"}},
			{name: "rejected unknown tag", args: []string{"--unknown", "reject", "-t", "span", "https://example.com"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				args := append([]string{"scrape", "-c", writeConfig(t, "sites: {}\n")}, tt.args...)
				_, err := executeRoot(t, args...)
				if err == nil || !strings.Contains(err.Error(), "configuration error") {
					t.Errorf("expected configuration error, got %v", err)
				}
			})
		}
	})
}
