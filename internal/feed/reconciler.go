// Package feed reconciles RSS/Atom feed listings into entry records and
// triggers downstream pipeline work.
package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"newslens/internal/fetcher"
	"newslens/internal/model"
	"newslens/internal/queue"
	"newslens/internal/storage"
)

const maxFeedSize = 5 * 1024 * 1024

// Reconciler parses one feed's listing, upserts entry stubs by link, fetches
// entries that have no HTML yet, and submits extraction for fresh HTML.
type Reconciler struct {
	store   storage.Storage
	fetcher *fetcher.Fetcher
	queue   queue.Submitter
	client  fetcher.HTTPClient
	log     *slog.Logger
}

// NewReconciler wires the reconciler's collaborators. client downloads the
// feed document itself; per-entry article fetches go through fetcher.
func NewReconciler(store storage.Storage, f *fetcher.Fetcher, q queue.Submitter, client fetcher.HTTPClient, log *slog.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		fetcher: f,
		queue:   q,
		client:  client,
		log:     log,
	}
}

// Reconcile processes a single feed; used as the crawl_feed task handler.
// Feed-level failures (unknown feed, unreachable URL, malformed XML) are
// logged and treated as a zero-entry listing.
func (r *Reconciler) Reconcile(ctx context.Context, feedID string) error {
	fd, err := r.store.GetFeed(ctx, feedID)
	if err != nil {
		if err == storage.ErrNotFound {
			r.log.Warn("feed not found", "feed_id", feedID)
			return nil
		}
		return err
	}

	parsed := r.parseFeed(ctx, fd)
	if parsed == nil {
		return nil
	}

	for _, item := range parsed.Items {
		if item.Link == "" || item.Title == "" {
			r.log.Warn("feed item missing link or title", "feed_id", fd.ID, "title", item.Title, "link", item.Link)
			continue
		}
		if err := r.reconcileItem(ctx, fd, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) reconcileItem(ctx context.Context, fd *model.Feed, item *gofeed.Item) error {
	description := item.Description
	if description == "" {
		description = item.Content
	}

	entry := &model.Entry{
		Link:        item.Link,
		FeedID:      fd.ID,
		Title:       item.Title,
		Description: description,
	}
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		entry.PubDate = &t
	}

	if err := r.store.UpsertEntry(ctx, entry); err != nil {
		return err
	}
	current, err := r.store.GetEntry(ctx, entry.Link)
	if err != nil {
		return err
	}

	if current.RawHTML == nil || *current.RawHTML == "" {
		if fetched := r.fetcher.FetchEntry(ctx, current); fetched != nil {
			current = fetched
		}
	}

	has, err := r.store.HasArticle(ctx, current.Link)
	if err != nil {
		return err
	}
	if !has && strings.Contains(current.ContentType(), "html") {
		r.queue.Submit(ctx, queue.TaskExtractEntry, current.Link)
	}
	return nil
}

// parseFeed downloads and parses the feed listing, returning nil on any
// failure so reconciliation of other feeds continues.
func (r *Reconciler) parseFeed(ctx context.Context, fd *model.Feed) *gofeed.Feed {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fd.URL, nil)
	if err != nil {
		r.log.Warn("build feed request", "feed_id", fd.ID, "url", fd.URL, "error", err)
		return nil
	}
	req.Header.Set("User-Agent", "newslens/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Warn("fetch feed", "feed_id", fd.ID, "url", fd.URL, "error", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		r.log.Warn("fetch feed", "feed_id", fd.ID, "url", fd.URL, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		r.log.Warn("read feed body", "feed_id", fd.ID, "url", fd.URL, "error", err)
		return nil
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		r.log.Warn("parse feed", "feed_id", fd.ID, "url", fd.URL, "error", err)
		return nil
	}
	return parsed
}
