package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/tagscrape/internal/model"
)

// Default configuration values.
// The scrape defaults (tag, pause, save) match the behavior of the script
// this tool replaces, so running it with only a URL gives the same files.
const (
	// DefaultUserAgent impersonates a desktop Chrome browser. Many sites
	// serve reduced pages or block requests with non-browser agents.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/101.0.4951.64 Safari/537.36"

	// DefaultTag is the tag kind extracted when none is requested.
	DefaultTag = "h2"

	// DefaultPause is the politeness delay before the request is issued.
	DefaultPause = 2 * time.Second

	// DefaultTimeout bounds the whole HTTP exchange including redirects.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize limits how much of the response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultOutputDir is where CSV and JSON files are written.
	DefaultOutputDir = "."

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "tagscrape"

	// FormatText prints the preview as plain text.
	FormatText = "text"

	// FormatMarkdown prints the summary as a Markdown document.
	FormatMarkdown = "markdown"

	// FormatJSON prints the run summary as JSON and silences the progress trace.
	FormatJSON = "json"
)

// Config holds all options for one scrape run.
// It is populated from defaults, the YAML file, the environment and CLI
// flags (in that order of precedence) and passed down explicitly.
type Config struct {
	// URL is the page to scrape. Must be an absolute http or https URL.
	URL string

	// TagKinds are the tag kinds to extract, normalized and de-duplicated,
	// in request order.
	TagKinds []string

	// Pause is the unconditional delay before the request is sent.
	Pause time.Duration

	// Save enables writing CSV and JSON files per tag kind.
	Save bool

	// OutputDir is the directory for CSV and JSON files.
	OutputDir string

	// Format selects the console output: FormatText, FormatMarkdown or FormatJSON.
	Format string

	// UnknownPolicy decides how tag kinds without a dedicated schema are handled.
	UnknownPolicy model.UnknownPolicy

	// UserAgent is the User-Agent header sent with the request.
	UserAgent string

	// Headers are extra request headers, typically from the site configuration.
	Headers map[string]string

	// Cookie is a raw Cookie header value, typically from the site configuration.
	Cookie string

	// Timeout bounds the HTTP exchange. Zero disables the timeout.
	Timeout time.Duration

	// MaxBodySize is the maximum number of body bytes read.
	MaxBodySize int64

	// SOCKS5Proxy routes the request through a SOCKS5 proxy at "host:port".
	SOCKS5Proxy string

	// UseTor starts an embedded Tor daemon and routes the request through it.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for Tor to bootstrap.
	TorStartupTimeout time.Duration

	// Record saves a summary of the run in the history database.
	Record bool

	// DBDir is the directory of the history database.
	DBDir string

	// ConfigFilePath is an explicit configuration file path.
	ConfigFilePath string

	// SiteConfigs holds the configuration file contents.
	SiteConfigs *File

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		TagKinds:          []string{DefaultTag},
		Pause:             DefaultPause,
		Save:              true,
		OutputDir:         DefaultOutputDir,
		Format:            FormatText,
		UnknownPolicy:     model.UnknownAsText,
		UserAgent:         DefaultUserAgent,
		Headers:           make(map[string]string),
		Timeout:           DefaultTimeout,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for tagscrape.
// On Linux: ~/.local/share/tagscrape
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for tagscrape.
// On Linux: ~/.config/tagscrape
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ParseTagKinds splits, normalizes and de-duplicates tag kinds.
// Each argument may itself be a comma-separated list, so both
// "-t h1 -t p" and "-t h1,p" are accepted. Empty items are dropped.
func ParseTagKinds(raw []string) []string {
	seen := make(map[string]bool)
	kinds := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			tag := model.NormalizeTag(part)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			kinds = append(kinds, tag)
		}
	}
	return kinds
}

// UnknownTagKinds returns the configured tag kinds without a dedicated schema.
func (c *Config) UnknownTagKinds() []string {
	unknown := make([]string, 0)
	for _, tag := range c.TagKinds {
		if model.KindOf(tag) == model.KindUnknown {
			unknown = append(unknown, tag)
		}
	}
	return unknown
}

// ApplySite merges a site configuration into c. Non-zero site values win
// over the current values; headers are merged key by key.
func (c *Config) ApplySite(site SiteConfig) {
	if len(site.Tags) > 0 {
		c.TagKinds = ParseTagKinds(site.Tags)
	}
	if site.Pause != nil {
		c.Pause = *site.Pause
	}
	if site.UserAgent != "" {
		c.UserAgent = site.UserAgent
	}
	if site.Cookie != "" {
		c.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			c.Headers[k] = v
		}
	}
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrNoTarget
	}

	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}

	if len(c.TagKinds) == 0 {
		return ErrNoTagKinds
	}
	for _, tag := range c.TagKinds {
		if !model.IsValidTagName(tag) {
			return ErrInvalidTagKind
		}
	}

	if !c.UnknownPolicy.IsValid() {
		return ErrInvalidUnknownPolicy
	}
	if c.UnknownPolicy == model.UnknownReject && len(c.UnknownTagKinds()) > 0 {
		return ErrUnsupportedTagKind
	}

	if c.Pause < 0 {
		return ErrInvalidPause
	}

	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	switch c.Format {
	case FormatText, FormatMarkdown, FormatJSON:
	default:
		return ErrInvalidFormat
	}

	if c.UseTor && c.SOCKS5Proxy != "" {
		return ErrConflictingTransports
	}

	if c.Save && c.OutputDir == "" {
		return ErrNoOutputDir
	}

	return nil
}
