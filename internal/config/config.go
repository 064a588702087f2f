// Package config handles application configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by Load.
const (
	configPathEnv       = "NEWSLENS_CONFIG"
	databasePathEnv     = "DATABASE_PATH"
	logLevelEnv         = "LOG_LEVEL"
	httpAddrEnv         = "HTTP_ADDR"
	classifierURLEnv    = "CLASSIFIER_URL"
	classifierAPIKeyEnv = "CLASSIFIER_API_KEY"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath         string           `yaml:"databasePath"`
	LogLevel             string           `yaml:"logLevel"`
	HTTPAddr             string           `yaml:"httpAddr"`
	FetchTimeoutSeconds  int              `yaml:"fetchTimeoutSeconds"`
	SweepIntervalMinutes int              `yaml:"sweepIntervalMinutes"`
	Workers              int              `yaml:"workers"`
	Classifier           ClassifierConfig `yaml:"classifier"`
	Feeds                []FeedConfig     `yaml:"feeds"`
}

// ClassifierConfig describes the external sentiment inference service.
type ClassifierConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"apiKey"`
}

// FeedConfig is one subscribed feed, ensured in storage at startup.
type FeedConfig struct {
	Organization string `yaml:"organization"`
	Title        string `yaml:"title"`
	URL          string `yaml:"url"`
}

// Load reads the YAML config file named by NEWSLENS_CONFIG (if set) and
// applies environment overrides on top of the defaults.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	for i, f := range cfg.Feeds {
		if f.URL == "" {
			return nil, fmt.Errorf("feed %d: url is required", i)
		}
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv(classifierURLEnv); v != "" {
		c.Classifier.URL = v
	}
	if v := os.Getenv(classifierAPIKeyEnv); v != "" {
		c.Classifier.APIKey = v
	}
}

// FetchTimeout returns the per-request article fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// SweepInterval returns the dispatch reconciler period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

func defaultConfig() *Config {
	return &Config{
		DatabasePath:         "./data/crawler.db",
		LogLevel:             "info",
		HTTPAddr:             ":8080",
		FetchTimeoutSeconds:  8,
		SweepIntervalMinutes: 5,
		Workers:              4,
		Classifier: ClassifierConfig{
			URL: "http://localhost:8000/classify",
		},
	}
}
