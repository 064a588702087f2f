// Package model defines the domain types used across the application.
package model

import (
	"net/textproto"
	"time"
)

// Feed is a subscribed syndication source listing article links.
type Feed struct {
	ID           string
	Organization string
	Title        string
	URL          string
	CreatedAt    time.Time
}

// Entry is one article-link item from a feed, plus its fetch state.
//
// RawHTML distinguishes three states: nil means the link was never
// successfully fetched (or the transport failed), "" means a response
// arrived but was not textual, and a non-empty value is the response body.
type Entry struct {
	Link        string
	FeedID      string
	Title       string
	Description string
	PubDate     *time.Time
	RawHTML     *string
	ResolvedURL *string
	StatusCode  *int
	Headers     map[string]string
	FetchedAt   *time.Time
}

// Header returns a response header value by name, matching case-insensitively
// while the stored keys keep their original case.
func (e *Entry) Header(name string) string {
	want := textproto.CanonicalMIMEHeaderKey(name)
	for k, v := range e.Headers {
		if textproto.CanonicalMIMEHeaderKey(k) == want {
			return v
		}
	}
	return ""
}

// ContentType returns the recorded Content-Type header, or "" if the entry
// has never been fetched.
func (e *Entry) ContentType() string {
	return e.Header("Content-Type")
}

// Fetched reports whether an HTTP response has ever been recorded.
func (e *Entry) Fetched() bool {
	return e.RawHTML != nil
}

// FetchResult is the persisted outcome of one HTTP GET for an entry.
type FetchResult struct {
	RawHTML     string
	ResolvedURL string
	StatusCode  int
	Headers     map[string]string
	FetchedAt   time.Time
}

// SentimentLabel is a polarity classification.
type SentimentLabel string

// Classifier output labels; SentimentUnknown only appears in aggregates.
const (
	SentimentPositive SentimentLabel = "POSITIVE"
	SentimentNegative SentimentLabel = "NEGATIVE"
	SentimentUnknown  SentimentLabel = "UNKNOWN"
)

// SentenceSentiment is the classifier verdict for a single sentence.
type SentenceSentiment struct {
	Label SentimentLabel `json:"label"`
	Score float64        `json:"score"`
}

// Article is the extracted human-readable content and derived analysis for
// one Entry. Sentiment maps sentence text to its classification; an empty
// map means scoring has not run yet.
type Article struct {
	ID        string
	EntryLink string
	Title     *string
	Keywords  []string
	Author    *string
	Body      *string
	Sentiment map[string]SentenceSentiment
}

// Scored reports whether sentiment scoring has completed. A non-empty
// mapping is final; scoring must not be recomputed.
func (a *Article) Scored() bool {
	return len(a.Sentiment) > 0
}

// ArticleDoc is an article joined with its entry, used for read-side
// projections.
type ArticleDoc struct {
	Article
	Link      string
	PubDate   *time.Time
	FetchedAt *time.Time
}

// URL returns the source URL of the article.
func (d *ArticleDoc) URL() string {
	return d.Link
}

// PublicationDate is the entry's published date, falling back to the fetch
// timestamp when the feed did not carry one.
func (d *ArticleDoc) PublicationDate() *time.Time {
	if d.PubDate != nil {
		return d.PubDate
	}
	return d.FetchedAt
}
