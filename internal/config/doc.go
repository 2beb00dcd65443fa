// Package config provides configuration structures and utilities for tagscrape.
// It defines the options of a scrape run and loads them from the YAML
// configuration file, TAGSCRAPE_* environment variables and defaults.
package config
