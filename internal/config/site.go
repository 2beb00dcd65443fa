package config

import (
	"net/url"
	"strings"
	"time"
)

// SiteConfig holds settings applied to requests for one host.
type SiteConfig struct {
	// Tags are the tag kinds to extract for this host when --tags is not given.
	Tags []string `yaml:"tags,omitempty"`

	// Pause overrides the politeness delay for this host.
	Pause *time.Duration `yaml:"pause,omitempty"`

	// UserAgent overrides the User-Agent header for this host.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Cookie is an HTTP cookie to send to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to send to this host.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .tagscrape configuration file.
type File struct {
	// Sites maps host names (e.g. "example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every host unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for the host of rawURL merged
// over the defaults. Hosts are matched case-insensitively, with and
// without a leading "www.".
func (cf *File) GetSiteConfig(rawURL string) SiteConfig {
	if cf == nil {
		return SiteConfig{}
	}

	result := cf.Defaults
	site, ok := cf.lookup(hostOf(rawURL))
	if !ok {
		return result
	}

	if len(site.Tags) > 0 {
		result.Tags = site.Tags
	}
	if site.Pause != nil {
		result.Pause = site.Pause
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(site.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range site.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}

	return result
}

// lookup finds a site entry by host.
func (cf *File) lookup(host string) (SiteConfig, bool) {
	if host == "" {
		return SiteConfig{}, false
	}
	for _, candidate := range []string{host, strings.TrimPrefix(host, "www.")} {
		for key, site := range cf.Sites {
			if strings.EqualFold(key, candidate) {
				return site, true
			}
		}
	}
	return SiteConfig{}, false
}

// hostOf returns the lower-cased host name of rawURL without port.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
