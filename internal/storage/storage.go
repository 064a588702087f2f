// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"newslens/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	EnsureFeed(ctx context.Context, feed *model.Feed) error
	GetFeed(ctx context.Context, id string) (*model.Feed, error)
	ListFeeds(ctx context.Context) ([]model.Feed, error)
	DeleteFeed(ctx context.Context, id string) error

	UpsertEntry(ctx context.Context, entry *model.Entry) error
	GetEntry(ctx context.Context, link string) (*model.Entry, error)
	SaveFetchResult(ctx context.Context, link string, res *model.FetchResult) error
	UnfetchedEntries(ctx context.Context) ([]model.Entry, error)
	UnextractedEntries(ctx context.Context) ([]model.Entry, error)

	UpsertArticle(ctx context.Context, article *model.Article) error
	GetArticle(ctx context.Context, id string) (*model.Article, error)
	GetArticleByEntry(ctx context.Context, link string) (*model.Article, error)
	HasArticle(ctx context.Context, link string) (bool, error)
	SaveSentiment(ctx context.Context, articleID string, sentiment map[string]model.SentenceSentiment) error
	UnscoredArticles(ctx context.Context) ([]model.Article, error)

	GetArticleDoc(ctx context.Context, id string) (*model.ArticleDoc, error)
	SearchArticles(ctx context.Context, query string, limit, offset int) ([]model.ArticleDoc, int, error)

	Close() error
}
