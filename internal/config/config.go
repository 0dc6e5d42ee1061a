// Package config provides configuration loading and validation for the
// probe MCP server.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel validation errors.
var (
	ErrInvalidPort           = errors.New("invalid server port")
	ErrInvalidMaxResults     = errors.New("default max results must be positive")
	ErrInvalidMergeThreshold = errors.New("default merge threshold must not be negative")
	ErrInvalidReranker       = errors.New("unknown default reranker")
)

// Default configuration values.
const (
	DefaultPort           = 8090
	DefaultHost           = "127.0.0.1"
	DefaultMaxResults     = 50
	DefaultMergeThreshold = 5
	DefaultReranker       = "hybrid"
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
	maxPort               = 65535
)

// Config is the top-level configuration struct for the probe MCP server.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Search  SearchConfig  `mapstructure:"search"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds transport-level configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Port         int           `mapstructure:"port"`
	Stdio        bool          `mapstructure:"stdio"`
}

// SearchConfig holds the defaults applied to a search_code call that omits
// the corresponding field (spec §6.3).
type SearchConfig struct {
	DefaultReranker       string `mapstructure:"default_reranker"`
	DefaultMaxResults     int    `mapstructure:"default_max_results"`
	DefaultMergeThreshold int    `mapstructure:"default_merge_threshold"`
	AllowTestsByDefault   bool   `mapstructure:"allow_tests_by_default"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Validate checks the loaded configuration for internally inconsistent
// values that SetDefault alone cannot prevent (e.g. an explicit override
// from a config file or environment variable).
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Search.DefaultMaxResults <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxResults, c.Search.DefaultMaxResults)
	}

	if c.Search.DefaultMergeThreshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMergeThreshold, c.Search.DefaultMergeThreshold)
	}

	switch c.Search.DefaultReranker {
	case "hybrid", "hybrid2", "bm25", "tfidf":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidReranker, c.Search.DefaultReranker)
	}

	return nil
}
