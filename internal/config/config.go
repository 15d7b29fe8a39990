// Package config resolves runtime settings from .env, the environment and
// defaults. The result is passed to constructors; nothing reads it globally.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	BaseURL      string
	PollInterval time.Duration
	HTTPTimeout  time.Duration
	PollOnStart  bool
	Port         string
	Environment  string
	LogLevel     string
	ExportLimit  int
}

func defaults(v *viper.Viper) {
	v.SetDefault("API_BASE_URL", "http://localhost:8000")
	v.SetDefault("POLL_INTERVAL_MS", 2000)
	v.SetDefault("HTTP_TIMEOUT_MS", 10000)
	v.SetDefault("POLL_ON_START", false)
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "local")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("EXPORT_LIMIT", 1000)
}

// Load reads .env files (if any) and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...) // loads .env

	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper resolves a Config from v on top of the defaults.
func FromViper(v *viper.Viper) (*Config, error) {
	defaults(v)
	cfg := &Config{
		BaseURL:      strings.TrimRight(strings.TrimSpace(v.GetString("API_BASE_URL")), "/"),
		PollInterval: time.Duration(v.GetInt("POLL_INTERVAL_MS")) * time.Millisecond,
		HTTPTimeout:  time.Duration(v.GetInt("HTTP_TIMEOUT_MS")) * time.Millisecond,
		PollOnStart:  v.GetBool("POLL_ON_START"),
		Port:         v.GetString("PORT"),
		Environment:  v.GetString("ENVIRONMENT"),
		LogLevel:     strings.ToLower(v.GetString("LOG_LEVEL")),
		ExportLimit:  v.GetInt("EXPORT_LIMIT"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.BaseURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_MS must be positive")
	}
	if c.ExportLimit <= 0 {
		return fmt.Errorf("EXPORT_LIMIT must be positive")
	}
	return nil
}
