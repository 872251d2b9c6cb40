package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Refresh policies. Exactly one is active per process.
const (
	PolicyProactive = "proactive"
	PolicyReactive  = "reactive"
)

// Output formats understood by the CLI renderer.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Config holds all environment-based configuration for ioco.
type Config struct {
	// Base URL of the backend API, including the /api prefix.
	APIURL string `env:"IOCO_API_URL" envDefault:"http://localhost:8080/api"`

	// Account credentials used by `ioco login` when none are given on
	// the command line.
	Email    string `env:"IOCO_EMAIL"`
	Password string `env:"IOCO_PASSWORD"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// RequestTimeout bounds every HTTP round trip, including the token
	// refresh call. A refresh that times out forces a logout.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`

	// RefreshHorizon is how long before expiry an access token is
	// refreshed under the proactive policy.
	RefreshHorizon time.Duration `env:"REFRESH_HORIZON" envDefault:"5m"`

	// RefreshPolicy selects proactive pre-request refresh or reactive
	// refresh-and-retry on 401.
	RefreshPolicy string `env:"REFRESH_POLICY" envDefault:"proactive"`

	// HTTPRetryMax is the retry budget for idempotent requests that fail
	// with a transient error. The refresh call is never retried.
	HTTPRetryMax int `env:"HTTP_RETRY_MAX" envDefault:"2"`

	// StatePath is the bbolt file holding credentials. Defaults to
	// ~/.ioco/state.db.
	StatePath string `env:"IOCO_STATE_PATH"`

	OutputFormat string `env:"OUTPUT_FORMAT" envDefault:"table"`

	// Platform is sent as the `platform` header on every request.
	Platform string `env:"CLIENT_PLATFORM" envDefault:"go-cli"`

	SentryDSN string `env:"SENTRY_DSN"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.StatePath == "" {
		path, err := DefaultStatePath()
		if err != nil {
			return nil, err
		}

		cfg.StatePath = path
	}

	absPath, err := filepath.Abs(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("resolving state path to absolute path: %w", err)
	}

	cfg.StatePath = absPath

	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("IOCO_API_URL must be an absolute http(s) URL, got %q", c.APIURL)
	}

	switch c.RefreshPolicy {
	case PolicyProactive, PolicyReactive:
	default:
		return fmt.Errorf("REFRESH_POLICY must be %q or %q, got %q", PolicyProactive, PolicyReactive, c.RefreshPolicy)
	}

	switch c.OutputFormat {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("OUTPUT_FORMAT must be one of table, json, yaml, got %q", c.OutputFormat)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.RefreshHorizon <= 0 {
		return fmt.Errorf("REFRESH_HORIZON must be positive")
	}

	if c.HTTPRetryMax < 0 {
		return fmt.Errorf("HTTP_RETRY_MAX must not be negative")
	}

	return nil
}

// DefaultStatePath returns ~/.ioco/state.db.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".ioco", "state.db"), nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
