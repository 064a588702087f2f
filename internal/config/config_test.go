package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := &Config{
		DatabasePath:         "./data/crawler.db",
		LogLevel:             "info",
		HTTPAddr:             ":8080",
		FetchTimeoutSeconds:  8,
		SweepIntervalMinutes: 5,
		Workers:              4,
		Classifier:           ClassifierConfig{URL: "http://localhost:8000/classify"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	if got := cfg.FetchTimeout(); got != 8*time.Second {
		t.Errorf("fetch timeout mismatch, got %v", got)
	}
	if got := cfg.SweepInterval(); got != 5*time.Minute {
		t.Errorf("sweep interval mismatch, got %v", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	raw := `
databasePath: /var/lib/newslens/db.sqlite
logLevel: debug
sweepIntervalMinutes: 10
classifier:
  url: http://inference.internal/classify
  apiKey: secret
feeds:
  - organization: CNN Money
    title: Top Stories
    url: http://rss.cnn.com/rss/money_topstories.rss
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NEWSLENS_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := &Config{
		DatabasePath:         "/var/lib/newslens/db.sqlite",
		LogLevel:             "debug",
		HTTPAddr:             ":8080",
		FetchTimeoutSeconds:  8,
		SweepIntervalMinutes: 10,
		Workers:              4,
		Classifier: ClassifierConfig{
			URL:    "http://inference.internal/classify",
			APIKey: "secret",
		},
		Feeds: []FeedConfig{
			{Organization: "CNN Money", Title: "Top Stories", URL: "http://rss.cnn.com/rss/money_topstories.rss"},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	raw := "databasePath: /from/file.db\nlogLevel: debug\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NEWSLENS_CONFIG", path)
	t.Setenv("DATABASE_PATH", "/from/env.db")
	t.Setenv("CLASSIFIER_URL", "http://env.example/classify")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.DatabasePath != "/from/env.db" {
		t.Errorf("expected env override for database path, got %q", cfg.DatabasePath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected file value for log level, got %q", cfg.LogLevel)
	}
	if cfg.Classifier.URL != "http://env.example/classify" {
		t.Errorf("expected env override for classifier URL, got %q", cfg.Classifier.URL)
	}
}

func TestLoadRejectsFeedWithoutURL(t *testing.T) {
	clearEnv(t)

	raw := "feeds:\n  - organization: CNN\n    title: Top Stories\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NEWSLENS_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for feed without url")
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NEWSLENS_CONFIG", "DATABASE_PATH", "LOG_LEVEL", "HTTP_ADDR",
		"CLASSIFIER_URL", "CLASSIFIER_API_KEY",
	} {
		t.Setenv(key, "")
	}
}
