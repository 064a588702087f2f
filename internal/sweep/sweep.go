// Package sweep runs the periodic reconciliation queries that resubmit
// incomplete pipeline work. The sweeps are the self-healing mechanism
// against dropped or failed task executions: each one queries storage for
// records missing downstream work and resubmits them with at-least-once
// semantics, relying on the handlers' own idempotency guards.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"newslens/internal/queue"
	"newslens/internal/storage"
)

// Sweeper periodically scans storage and resubmits pipeline tasks.
type Sweeper struct {
	store storage.Storage
	queue queue.Submitter
	log   *slog.Logger
	tick  time.Duration
}

// New creates a Sweeper with the default 5-minute interval.
func New(store storage.Storage, q queue.Submitter, log *slog.Logger) *Sweeper {
	return &Sweeper{
		store: store,
		queue: q,
		log:   log,
		tick:  5 * time.Minute,
	}
}

// SetInterval overrides the default sweep interval.
func (s *Sweeper) SetInterval(d time.Duration) {
	s.tick = d
}

// Run starts the sweep loop, blocking until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweepAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAll(ctx)
		}
	}
}

func (s *Sweeper) sweepAll(ctx context.Context) {
	s.dispatchFeeds(ctx)
	s.dispatchFetches(ctx)
	s.dispatchExtractions(ctx)
	s.dispatchScoring(ctx)
}

// dispatchFeeds submits a crawl task for every subscribed feed.
func (s *Sweeper) dispatchFeeds(ctx context.Context) {
	feeds, err := s.store.ListFeeds(ctx)
	if err != nil {
		s.log.Error("list feeds", "error", err)
		return
	}
	for _, f := range feeds {
		s.queue.Submit(ctx, queue.TaskCrawlFeed, f.ID)
	}
	s.log.Debug("dispatched feed crawls", "count", len(feeds))
}

// dispatchFetches resubmits entries never successfully fetched, excluding
// entries whose recorded headers already mark them non-HTML.
func (s *Sweeper) dispatchFetches(ctx context.Context) {
	entries, err := s.store.UnfetchedEntries(ctx)
	if err != nil {
		s.log.Error("query unfetched entries", "error", err)
		return
	}
	for _, e := range entries {
		s.queue.Submit(ctx, queue.TaskFetchEntry, e.Link)
	}
	if len(entries) > 0 {
		s.log.Info("dispatched entry fetches", "count", len(entries))
	}
}

// dispatchExtractions resubmits fetched HTML entries that have no article.
func (s *Sweeper) dispatchExtractions(ctx context.Context) {
	entries, err := s.store.UnextractedEntries(ctx)
	if err != nil {
		s.log.Error("query unextracted entries", "error", err)
		return
	}
	for _, e := range entries {
		s.queue.Submit(ctx, queue.TaskExtractEntry, e.Link)
	}
	if len(entries) > 0 {
		s.log.Info("dispatched extractions", "count", len(entries))
	}
}

// dispatchScoring resubmits articles with a body and no sentiment yet.
// Articles whose mapping is non-empty are never resubmitted.
func (s *Sweeper) dispatchScoring(ctx context.Context) {
	articles, err := s.store.UnscoredArticles(ctx)
	if err != nil {
		s.log.Error("query unscored articles", "error", err)
		return
	}
	for _, a := range articles {
		s.queue.Submit(ctx, queue.TaskScoreArticle, a.ID)
	}
	if len(articles) > 0 {
		s.log.Info("dispatched scoring", "count", len(articles))
	}
}
