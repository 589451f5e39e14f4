package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type CatalogCfg struct {
	Endpoint              string `yaml:"endpoint" json:"endpoint"`
	Token                 string `yaml:"token" json:"token"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
	MinRequestIntervalMS  int    `yaml:"min_request_interval_ms" json:"min_request_interval_ms"` // 0 disables pacing
}

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"` // 0 disables the metrics server
}

type LoggingCfg struct {
	RotationDays int `yaml:"rotation_days" json:"rotation_days"`
}

type Config struct {
	Catalog         CatalogCfg    `yaml:"catalog" json:"catalog"`
	Concurrency     int           `yaml:"concurrency" json:"concurrency"`
	DiscoverWorkers int           `yaml:"discover_workers" json:"discover_workers"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
	FailuresDir     string        `yaml:"failures_dir" json:"failures_dir"`
	DatabasePath    string        `yaml:"database_path" json:"database_path"` // empty disables history
	ProtectedPaths  []string      `yaml:"protected_paths" json:"protected_paths"`
	Prometheus      PrometheusCfg `yaml:"prometheus" json:"prometheus"`
	Logging         LoggingCfg    `yaml:"logging" json:"logging"`
}

var (
	errNoEndpoint       = errors.New("configuration must specify catalog.endpoint")
	errNegativeRetries  = errors.New("max_retries cannot be negative")
	errNegativeWorkers  = errors.New("concurrency cannot be negative")
	errNegativeInterval = errors.New("min_request_interval_ms cannot be negative")
)

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if c.Catalog.Endpoint == "" {
		return errNoEndpoint
	}
	if c.Concurrency < 0 {
		return errNegativeWorkers
	}
	if c.MaxRetries < 0 {
		return errNegativeRetries
	}
	if c.Catalog.MinRequestIntervalMS < 0 {
		return errNegativeInterval
	}

	if c.Concurrency == 0 {
		c.Concurrency = 10
	}
	if c.DiscoverWorkers == 0 {
		c.DiscoverWorkers = c.Concurrency
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Catalog.RequestTimeoutSeconds == 0 {
		c.Catalog.RequestTimeoutSeconds = 30
	}
	if c.FailuresDir == "" {
		c.FailuresDir = "/var/lib/asset-sweep/failures"
	}
	if c.Logging.RotationDays == 0 {
		c.Logging.RotationDays = 30
	}
	return nil
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Catalog.RequestTimeoutSeconds) * time.Second
}

// MinRequestInterval returns the pacing interval; zero disables pacing.
func (c *Config) MinRequestInterval() time.Duration {
	return time.Duration(c.Catalog.MinRequestIntervalMS) * time.Millisecond
}
