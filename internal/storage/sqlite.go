package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"newslens/internal/model"
	"newslens/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// EnsureFeed upserts a feed by its URL and populates the ID.
func (s *SQLite) EnsureFeed(ctx context.Context, feed *model.Feed) error {
	if feed.ID == "" {
		feed.ID = uuid.New().String()
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feeds (id, organization, title, url, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET organization = excluded.organization, title = excluded.title`,
		feed.ID, feed.Organization, feed.Title, feed.URL, now,
	)
	if err != nil {
		return fmt.Errorf("upsert feed: %w", err)
	}

	// The row may predate this call; read back the persisted identity.
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM feeds WHERE url = ?`, feed.URL,
	)
	var created string
	if err := row.Scan(&feed.ID, &created); err != nil {
		return fmt.Errorf("read back feed: %w", err)
	}
	feed.CreatedAt, _ = time.Parse(timeLayout, created)
	return nil
}

// GetFeed returns a single feed by its ID.
func (s *SQLite) GetFeed(ctx context.Context, id string) (*model.Feed, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, organization, title, url, created_at FROM feeds WHERE id = ?`, id,
	)
	var f model.Feed
	var created string
	if err := row.Scan(&f.ID, &f.Organization, &f.Title, &f.URL, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan feed: %w", err)
	}
	f.CreatedAt, _ = time.Parse(timeLayout, created)
	return &f, nil
}

// ListFeeds returns all subscribed feeds.
func (s *SQLite) ListFeeds(ctx context.Context) ([]model.Feed, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization, title, url, created_at FROM feeds ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var feeds []model.Feed
	for rows.Next() {
		var f model.Feed
		var created string
		if err := rows.Scan(&f.ID, &f.Organization, &f.Title, &f.URL, &created); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		f.CreatedAt, _ = time.Parse(timeLayout, created)
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// DeleteFeed removes a feed; its entries and their articles cascade.
func (s *SQLite) DeleteFeed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	return nil
}

// UpsertEntry creates or updates an entry keyed by its link. Only the fields
// owned by feed reconciliation (feed, title, description, pub date) are
// written; fetch state is left untouched.
func (s *SQLite) UpsertEntry(ctx context.Context, entry *model.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (link, feed_id, title, description, pub_date)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(link) DO UPDATE SET
		   feed_id = excluded.feed_id,
		   title = excluded.title,
		   description = excluded.description,
		   pub_date = excluded.pub_date`,
		entry.Link, entry.FeedID, entry.Title, entry.Description, formatNullTime(entry.PubDate),
	)
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

const entryColumns = `link, feed_id, title, description, pub_date, raw_html,
	resolved_url, status_code, headers, fetched_at`

// GetEntry returns a single entry by its link.
func (s *SQLite) GetEntry(ctx context.Context, link string) (*model.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE link = ?`, link,
	)
	return scanEntry(row)
}

// SaveFetchResult records the outcome of an HTTP GET on the entry, replacing
// any previous fetch state.
func (s *SQLite) SaveFetchResult(ctx context.Context, link string, res *model.FetchResult) error {
	headers, err := json.Marshal(res.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	out, err := s.db.ExecContext(ctx,
		`UPDATE entries
		 SET raw_html = ?, resolved_url = ?, status_code = ?, headers = ?, fetched_at = ?
		 WHERE link = ?`,
		res.RawHTML, res.ResolvedURL, res.StatusCode, string(headers),
		res.FetchedAt.UTC().Format(timeLayout), link,
	)
	if err != nil {
		return fmt.Errorf("save fetch result: %w", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UnfetchedEntries finds entries that were never successfully fetched,
// excluding entries already confirmed non-HTML by their recorded headers.
func (s *SQLite) UnfetchedEntries(ctx context.Context) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+`
		 FROM entries
		 WHERE raw_html IS NULL
		   AND (headers IS NULL
		        OR json_extract(headers, '$."Content-Type"') IS NULL
		        OR LOWER(json_extract(headers, '$."Content-Type"')) LIKE '%text/html%')
		 ORDER BY link`,
	)
	if err != nil {
		return nil, fmt.Errorf("query unfetched entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// UnextractedEntries finds fetched HTML entries that have no article yet.
func (s *SQLite) UnextractedEntries(ctx context.Context) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumnsPrefixed("e")+`
		 FROM entries e
		 LEFT JOIN articles a ON a.entry_link = e.link
		 WHERE e.raw_html IS NOT NULL
		   AND a.id IS NULL
		   AND LOWER(json_extract(e.headers, '$."Content-Type"')) LIKE '%html%'
		 ORDER BY e.link`,
	)
	if err != nil {
		return nil, fmt.Errorf("query unextracted entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// UpsertArticle creates or updates the article for an entry. The extracted
// fields are replaced as one unit; the sentiment mapping is preserved across
// re-extraction.
func (s *SQLite) UpsertArticle(ctx context.Context, article *model.Article) error {
	if article.ID == "" {
		article.ID = uuid.New().String()
	}
	keywords, err := json.Marshal(keywordsOrEmpty(article.Keywords))
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO articles (id, entry_link, title, keywords, author, body, sentiment)
		 VALUES (?, ?, ?, ?, ?, ?, '{}')
		 ON CONFLICT(entry_link) DO UPDATE SET
		   title = excluded.title,
		   keywords = excluded.keywords,
		   author = excluded.author,
		   body = excluded.body`,
		article.ID, article.EntryLink, article.Title, string(keywords), article.Author, article.Body,
	)
	if err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id FROM articles WHERE entry_link = ?`, article.EntryLink,
	)
	if err := row.Scan(&article.ID); err != nil {
		return fmt.Errorf("read back article id: %w", err)
	}
	return nil
}

const articleColumns = `id, entry_link, title, keywords, author, body, sentiment`

// GetArticle returns a single article by its ID.
func (s *SQLite) GetArticle(ctx context.Context, id string) (*model.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id,
	)
	return scanArticle(row)
}

// GetArticleByEntry returns the article owned by the given entry link.
func (s *SQLite) GetArticleByEntry(ctx context.Context, link string) (*model.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE entry_link = ?`, link,
	)
	return scanArticle(row)
}

// HasArticle reports whether an article exists for the entry link.
func (s *SQLite) HasArticle(ctx context.Context, link string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE entry_link = ?`, link,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check article: %w", err)
	}
	return count > 0, nil
}

// SaveSentiment stores the sentence sentiment mapping for an article.
func (s *SQLite) SaveSentiment(ctx context.Context, articleID string, sentiment map[string]model.SentenceSentiment) error {
	raw, err := json.Marshal(sentiment)
	if err != nil {
		return fmt.Errorf("marshal sentiment: %w", err)
	}
	out, err := s.db.ExecContext(ctx,
		`UPDATE articles SET sentiment = ? WHERE id = ?`, string(raw), articleID,
	)
	if err != nil {
		return fmt.Errorf("save sentiment: %w", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UnscoredArticles finds articles with a body whose sentiment mapping is
// still empty.
func (s *SQLite) UnscoredArticles(ctx context.Context) ([]model.Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+`
		 FROM articles
		 WHERE sentiment = '{}' AND body IS NOT NULL
		 ORDER BY entry_link`,
	)
	if err != nil {
		return nil, fmt.Errorf("query unscored articles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var articles []model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

const docColumns = `a.id, a.entry_link, a.title, a.keywords, a.author, a.body, a.sentiment,
	e.link, e.pub_date, e.fetched_at`

// GetArticleDoc returns an article joined with its entry by article ID.
func (s *SQLite) GetArticleDoc(ctx context.Context, id string) (*model.ArticleDoc, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+docColumns+`
		 FROM articles a JOIN entries e ON e.link = a.entry_link
		 WHERE a.id = ?`, id,
	)
	return scanArticleDoc(row)
}

// SearchArticles returns articles matching the query as a case-insensitive
// substring of title, author, body, or keywords, newest first, along with
// the total match count.
func (s *SQLite) SearchArticles(ctx context.Context, query string, limit, offset int) ([]model.ArticleDoc, int, error) {
	where := `(? = '' OR LOWER(COALESCE(a.title, '')) LIKE ?
		OR LOWER(COALESCE(a.author, '')) LIKE ?
		OR LOWER(COALESCE(a.body, '')) LIKE ?
		OR LOWER(a.keywords) LIKE ?)`
	pattern := "%" + strings.ToLower(query) + "%"

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles a WHERE `+where,
		query, pattern, pattern, pattern, pattern,
	).Scan(&count)
	if err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+docColumns+`
		 FROM articles a JOIN entries e ON e.link = a.entry_link
		 WHERE `+where+`
		 ORDER BY COALESCE(e.pub_date, e.fetched_at) DESC, a.entry_link
		 LIMIT ? OFFSET ?`,
		query, pattern, pattern, pattern, pattern, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search articles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []model.ArticleDoc
	for rows.Next() {
		d, err := scanArticleDoc(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, *d)
	}
	return docs, count, rows.Err()
}

func formatNullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(timeLayout)
	return &v
}

func keywordsOrEmpty(kw []string) []string {
	if kw == nil {
		return []string{}
	}
	return kw
}

func entryColumnsPrefixed(alias string) string {
	cols := strings.Split(entryColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*model.Entry, error) {
	var e model.Entry
	var pubDate, rawHTML, resolvedURL, headers, fetchedAt sql.NullString
	var statusCode sql.NullInt64
	err := row.Scan(&e.Link, &e.FeedID, &e.Title, &e.Description,
		&pubDate, &rawHTML, &resolvedURL, &statusCode, &headers, &fetchedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	if pubDate.Valid {
		t, _ := time.Parse(timeLayout, pubDate.String)
		e.PubDate = &t
	}
	if rawHTML.Valid {
		e.RawHTML = &rawHTML.String
	}
	if resolvedURL.Valid {
		e.ResolvedURL = &resolvedURL.String
	}
	if statusCode.Valid {
		code := int(statusCode.Int64)
		e.StatusCode = &code
	}
	if headers.Valid {
		if err := json.Unmarshal([]byte(headers.String), &e.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	if fetchedAt.Valid {
		t, _ := time.Parse(timeLayout, fetchedAt.String)
		e.FetchedAt = &t
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]model.Entry, error) {
	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanArticle(row scannable) (*model.Article, error) {
	var a model.Article
	var title, author, body sql.NullString
	var keywords, sentiment string
	err := row.Scan(&a.ID, &a.EntryLink, &title, &keywords, &author, &body, &sentiment)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	if title.Valid {
		a.Title = &title.String
	}
	if author.Valid {
		a.Author = &author.String
	}
	if body.Valid {
		a.Body = &body.String
	}
	if err := json.Unmarshal([]byte(keywords), &a.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(sentiment), &a.Sentiment); err != nil {
		return nil, fmt.Errorf("unmarshal sentiment: %w", err)
	}
	if len(a.Sentiment) == 0 {
		a.Sentiment = nil
	}
	return &a, nil
}

func scanArticleDoc(row scannable) (*model.ArticleDoc, error) {
	var d model.ArticleDoc
	var title, author, body sql.NullString
	var keywords, sentiment string
	var pubDate, fetchedAt sql.NullString
	err := row.Scan(&d.ID, &d.EntryLink, &title, &keywords, &author, &body, &sentiment,
		&d.Link, &pubDate, &fetchedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan article doc: %w", err)
	}
	if title.Valid {
		d.Title = &title.String
	}
	if author.Valid {
		d.Author = &author.String
	}
	if body.Valid {
		d.Body = &body.String
	}
	if err := json.Unmarshal([]byte(keywords), &d.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(sentiment), &d.Sentiment); err != nil {
		return nil, fmt.Errorf("unmarshal sentiment: %w", err)
	}
	if len(d.Sentiment) == 0 {
		d.Sentiment = nil
	}
	if pubDate.Valid {
		t, _ := time.Parse(timeLayout, pubDate.String)
		d.PubDate = &t
	}
	if fetchedAt.Valid {
		t, _ := time.Parse(timeLayout, fetchedAt.String)
		d.FetchedAt = &t
	}
	return &d, nil
}
