package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of environment variables read by LoadEnv.
const EnvPrefix = "TAGSCRAPE"

// Env holds settings read from TAGSCRAPE_* environment variables.
// Unset variables leave their field nil so they do not override
// values from the configuration file.
type Env struct {
	Tags        []string       `envconfig:"TAGS"`
	Pause       *time.Duration `envconfig:"PAUSE"`
	UserAgent   *string        `envconfig:"USER_AGENT"`
	Timeout     *time.Duration `envconfig:"TIMEOUT"`
	OutputDir   *string        `envconfig:"OUTPUT_DIR"`
	SOCKS5Proxy *string        `envconfig:"SOCKS5_PROXY"`
	DBDir       *string        `envconfig:"DB_DIR"`
}

// LoadEnv reads TAGSCRAPE_* environment variables.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ApplyEnv overrides c with every variable that was set.
func (c *Config) ApplyEnv(env *Env) {
	if env == nil {
		return
	}
	if len(env.Tags) > 0 {
		c.TagKinds = ParseTagKinds(env.Tags)
	}
	if env.Pause != nil {
		c.Pause = *env.Pause
	}
	if env.UserAgent != nil {
		c.UserAgent = *env.UserAgent
	}
	if env.Timeout != nil {
		c.Timeout = *env.Timeout
	}
	if env.OutputDir != nil {
		c.OutputDir = *env.OutputDir
	}
	if env.SOCKS5Proxy != nil {
		c.SOCKS5Proxy = *env.SOCKS5Proxy
	}
	if env.DBDir != nil {
		c.DBDir = *env.DBDir
	}
}
