package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"newslens/internal/api"
	"newslens/internal/config"
	"newslens/internal/extract"
	"newslens/internal/feed"
	"newslens/internal/fetcher"
	"newslens/internal/model"
	"newslens/internal/queue"
	"newslens/internal/sentiment"
	"newslens/internal/storage"
	"newslens/internal/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, fc := range cfg.Feeds {
		f := model.Feed{Organization: fc.Organization, Title: fc.Title, URL: fc.URL}
		if err := store.EnsureFeed(ctx, &f); err != nil {
			log.Error("seed feed", "url", fc.URL, "error", err)
			os.Exit(1)
		}
	}

	runner := queue.NewRunner(cfg.Workers, log.With("component", "queue"))

	fetch := fetcher.New(http.DefaultClient, store, log.With("component", "fetcher"))
	fetch.SetTimeout(cfg.FetchTimeout())

	reconciler := feed.NewReconciler(store, fetch, runner, http.DefaultClient, log.With("component", "feed"))
	extractor := extract.New(store, log.With("component", "extract"))
	classifier := sentiment.NewClient(cfg.Classifier.URL, cfg.Classifier.APIKey)
	scorer := sentiment.NewScorer(store, classifier, log.With("component", "sentiment"))

	runner.Register(queue.TaskCrawlFeed, reconciler.Reconcile)
	runner.Register(queue.TaskFetchEntry, fetch.FetchByLink)
	runner.Register(queue.TaskExtractEntry, extractor.ExtractEntry)
	runner.Register(queue.TaskScoreArticle, scorer.ScoreArticle)

	sweeper := sweep.New(store, runner, log.With("component", "sweep"))
	sweeper.SetInterval(cfg.SweepInterval())

	log.Info("starting crawler", "feeds", len(cfg.Feeds), "workers", cfg.Workers)

	go runner.Run(ctx)
	go sweeper.Run(ctx)

	server := api.New(store, cfg.HTTPAddr, log.With("component", "api"))
	if err := server.Run(ctx); err != nil {
		log.Error("api server", "error", err)
		os.Exit(1)
	}

	log.Info("crawler stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
