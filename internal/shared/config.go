package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Store    StoreConfig    `toml:"store"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// StoreConfig describes the remote document store.
type StoreConfig struct {
	URL                string  `toml:"url"`
	PageSize           int     `toml:"page_size"`
	RequestTimeout     int     `toml:"request_timeout"` // seconds
	RateLimit          float64 `toml:"rate_limit"`      // requests per second, 0 = unlimited
	MaxConcurrentTasks int     `toml:"max_concurrent_tasks"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig controls the logger level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Timeout returns the per-request timeout, zero meaning none.
func (s StoreConfig) Timeout() time.Duration {
	if s.RequestTimeout <= 0 {
		return 0
	}
	return time.Duration(s.RequestTimeout) * time.Second
}

// Validate reports configuration values the client cannot work with.
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("%w: store.url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.Store.URL)
	if err != nil {
		return fmt.Errorf("%w: store.url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: store.url must be http or https, got %q", ErrInvalidConfig, u.Scheme)
	}
	if c.Store.PageSize <= 0 {
		return fmt.Errorf("%w: store.page_size must be positive", ErrInvalidConfig)
	}
	if c.Store.RateLimit < 0 {
		return fmt.Errorf("%w: store.rate_limit must not be negative", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the defaults of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
