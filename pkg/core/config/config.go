// Package config loads sec-map settings from a YAML file with environment
// overrides (including a local .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DefaultPath is looked up in the working directory when no file is given.
const DefaultPath = "secmap.yaml"

// Config holds all sec-map settings.
type Config struct {
	// EDGAR access
	UserAgent      string `yaml:"user_agent"`
	ArchiveBaseURL string `yaml:"archive_base_url"`
	RateLimit      int    `yaml:"rate_limit"`              // requests per second
	RequestTimeout int    `yaml:"request_timeout_seconds"` // per request

	// Build
	StartDate      string   `yaml:"start_date"` // YYYY-MM-DD
	PreferredForms []string `yaml:"preferred_forms"`

	// State files; relative names resolve against DataDir.
	DataDir      string `yaml:"data_dir"`
	IndexFile    string `yaml:"index_file"`
	ProgressFile string `yaml:"progress_file"`
	TickerFile   string `yaml:"ticker_file"`

	// Serving
	ListenAddr        string `yaml:"listen_addr"`
	AssembleCacheSize int    `yaml:"assemble_cache_size"`

	// Optional Postgres mirror of the index.
	DatabaseURL string `yaml:"database_url"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		UserAgent:         "sec-map admin@example.com",
		ArchiveBaseURL:    "https://www.sec.gov",
		RateLimit:         9,
		RequestTimeout:    5,
		StartDate:         "2020-01-01",
		PreferredForms:    []string{"10-Q", "10-K"},
		DataDir:           "resources",
		IndexFile:         "index.json",
		ProgressFile:      "progress.json",
		TickerFile:        "tickers.json",
		ListenAddr:        ":5000",
		AssembleCacheSize: 256,
		LogLevel:          "info",
	}
}

// Load reads path (or DefaultPath when empty) over the defaults, then
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file just means the environment is set.
	_ = godotenv.Load()

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"SECMAP_USER_AGENT":  &c.UserAgent,
		"SECMAP_BASE_URL":    &c.ArchiveBaseURL,
		"SECMAP_START_DATE":  &c.StartDate,
		"SECMAP_DATA_DIR":    &c.DataDir,
		"SECMAP_LISTEN_ADDR": &c.ListenAddr,
		"SECMAP_LOG_LEVEL":   &c.LogLevel,
		"DATABASE_URL":       &c.DatabaseURL,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("SECMAP_RATE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SECMAP_RATE_LIMIT: %w", err)
		}
		c.RateLimit = n
	}
	if v, ok := os.LookupEnv("SECMAP_PREFERRED_FORMS"); ok {
		c.PreferredForms = splitList(v)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UserAgent) == "" {
		return errors.New("user_agent is required: EDGAR blocks anonymous clients")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be positive, got %d", c.RateLimit)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got %d", c.RequestTimeout)
	}
	if _, err := c.Start(); err != nil {
		return err
	}
	if c.AssembleCacheSize < 0 {
		return fmt.Errorf("assemble_cache_size must not be negative, got %d", c.AssembleCacheSize)
	}
	return nil
}

// Start parses StartDate.
func (c *Config) Start() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("start_date %q: %w", c.StartDate, err)
	}
	return t, nil
}

// Timeout returns RequestTimeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// IndexPath, ProgressPath and TickerPath resolve the state files.
func (c *Config) IndexPath() string    { return c.resolve(c.IndexFile) }
func (c *Config) ProgressPath() string { return c.resolve(c.ProgressFile) }
func (c *Config) TickerPath() string   { return c.resolve(c.TickerFile) }

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
