// Package fetcher downloads linked articles and records the outcome on the
// owning entry.
package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"newslens/internal/model"
	"newslens/internal/storage"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultTimeout bounds a single article GET.
const DefaultTimeout = 8 * time.Second

const maxBodySize = 5 * 1024 * 1024

// Fetcher performs one HTTP GET per entry link and persists the response.
type Fetcher struct {
	client  HTTPClient
	store   storage.Storage
	timeout time.Duration
	log     *slog.Logger
}

// New creates a Fetcher with the given HTTP client and the default timeout.
func New(client HTTPClient, store storage.Storage, log *slog.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		store:   store,
		timeout: DefaultTimeout,
		log:     log,
	}
}

// SetTimeout overrides the default per-request timeout.
func (f *Fetcher) SetTimeout(d time.Duration) {
	f.timeout = d
}

// FetchEntry performs the GET and persists status, resolved URL, headers,
// fetch time, and body. Any received response counts as an outcome, HTTP
// errors included; the body is kept only for textual content types, recorded
// as "" otherwise. On transport failure the entry is left untouched and nil
// is returned, so the next sweep retries it.
func (f *Fetcher) FetchEntry(ctx context.Context, entry *model.Entry) *model.Entry {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, entry.Link, nil)
	if err != nil {
		f.log.Warn("build request", "link", entry.Link, "error", err)
		return nil
	}
	req.Header.Set("User-Agent", "newslens/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Warn("could not GET entry", "link", entry.Link, "error", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		f.log.Warn("read body", "link", entry.Link, "error", err)
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	rawHTML := ""
	if strings.Contains(contentType, "text") {
		rawHTML = string(body)
	} else {
		f.log.Warn("unsupported content type", "link", entry.Link, "content_type", contentType)
	}

	resolved := entry.Link
	if resp.Request != nil && resp.Request.URL != nil {
		resolved = resp.Request.URL.String()
	}

	res := &model.FetchResult{
		RawHTML:     rawHTML,
		ResolvedURL: resolved,
		StatusCode:  resp.StatusCode,
		Headers:     flattenHeaders(resp.Header),
		FetchedAt:   time.Now().UTC(),
	}
	if err := f.store.SaveFetchResult(ctx, entry.Link, res); err != nil {
		f.log.Error("persist fetch result", "link", entry.Link, "error", err)
		return nil
	}

	updated := *entry
	updated.RawHTML = &res.RawHTML
	updated.ResolvedURL = &res.ResolvedURL
	updated.StatusCode = &res.StatusCode
	updated.Headers = res.Headers
	updated.FetchedAt = &res.FetchedAt
	return &updated
}

// FetchByLink loads the entry and fetches it; used as the fetch_entry task
// handler. A missing entry is a no-op.
func (f *Fetcher) FetchByLink(ctx context.Context, link string) error {
	entry, err := f.store.GetEntry(ctx, link)
	if err != nil {
		if err == storage.ErrNotFound {
			f.log.Warn("entry not found", "link", link)
			return nil
		}
		return err
	}
	f.FetchEntry(ctx, entry)
	return nil
}

// flattenHeaders keeps the response headers as a case-preserving name to
// value mapping, joining repeated headers the way proxies do.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}
