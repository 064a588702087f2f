package sentiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"newslens/internal/model"
	"newslens/internal/storage"
)

// stubClassifier labels sentences containing "down" negative and everything
// else positive, and counts calls.
type stubClassifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *stubClassifier) Classify(_ context.Context, sentence string) (model.SentenceSentiment, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return model.SentenceSentiment{}, c.err
	}
	if strings.Contains(strings.ToLower(sentence), "down") {
		return model.SentenceSentiment{Label: model.SentimentNegative, Score: 0.8}, nil
	}
	return model.SentenceSentiment{Label: model.SentimentPositive, Score: 0.9}, nil
}

func (c *stubClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestScoreArticle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	id := seedArticle(t, store, strPtr("Stocks went up today. Oil went down."))

	classifier := &stubClassifier{}
	s := NewScorer(store, classifier, discardLogger())
	if err := s.ScoreArticle(ctx, id); err != nil {
		t.Fatalf("score: %v", err)
	}

	article, err := store.GetArticle(ctx, id)
	if err != nil {
		t.Fatalf("get article: %v", err)
	}
	want := map[string]model.SentenceSentiment{
		"Stocks went up today.": {Label: model.SentimentPositive, Score: 0.9},
		"Oil went down.":        {Label: model.SentimentNegative, Score: 0.8},
	}
	if diff := cmp.Diff(want, article.Sentiment); diff != "" {
		t.Errorf("sentiment mismatch (-want +got):\n%s", diff)
	}

	// Scoring is one-shot; a scored article never reaches the classifier again.
	if err := s.ScoreArticle(ctx, id); err != nil {
		t.Fatalf("rescore: %v", err)
	}
	if got := classifier.callCount(); got != 2 {
		t.Errorf("expected 2 classifier calls, got %d", got)
	}
}

func TestScoreArticleClassifierFailureSavesNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	id := seedArticle(t, store, strPtr("One sentence. Another sentence."))

	classifier := &stubClassifier{err: errors.New("inference unavailable")}
	s := NewScorer(store, classifier, discardLogger())
	if err := s.ScoreArticle(ctx, id); err != nil {
		t.Fatalf("score: %v", err)
	}

	article, err := store.GetArticle(ctx, id)
	if err != nil {
		t.Fatalf("get article: %v", err)
	}
	if article.Scored() {
		t.Errorf("expected article to stay unscored, got %v", article.Sentiment)
	}

	unscored, err := store.UnscoredArticles(ctx)
	if err != nil {
		t.Fatalf("unscored: %v", err)
	}
	if len(unscored) != 1 || unscored[0].ID != id {
		t.Errorf("expected article to remain sweepable, got %v", unscored)
	}
}

func TestScoreArticleSkips(t *testing.T) {
	tests := []struct {
		name string
		body *string
	}{
		{name: "nil body", body: nil},
		{name: "empty body", body: strPtr("")},
		{name: "whitespace body", body: strPtr("   ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newTestStore(t)
			id := seedArticle(t, store, tt.body)

			classifier := &stubClassifier{}
			s := NewScorer(store, classifier, discardLogger())
			if err := s.ScoreArticle(ctx, id); err != nil {
				t.Fatalf("score: %v", err)
			}
			if got := classifier.callCount(); got != 0 {
				t.Errorf("expected no classifier calls, got %d", got)
			}
			article, err := store.GetArticle(ctx, id)
			if err != nil {
				t.Fatalf("get article: %v", err)
			}
			if article.Scored() {
				t.Errorf("expected article to stay unscored, got %v", article.Sentiment)
			}
		})
	}
}

func TestScoreArticleMissingArticle(t *testing.T) {
	store := newTestStore(t)
	classifier := &stubClassifier{}
	s := NewScorer(store, classifier, discardLogger())

	if err := s.ScoreArticle(context.Background(), "no-such-article"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if classifier.callCount() != 0 {
		t.Error("classifier should not be called for a missing article")
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain prose",
			text: "Stocks rose sharply. Investors cheered. Oil slipped.",
			want: []string{"Stocks rose sharply.", "Investors cheered.", "Oil slipped."},
		},
		{
			name: "abbreviations stay intact",
			text: "Shares of Acme Inc. fell 3%. The C.E.O. resigned.",
			want: []string{"Shares of Acme Inc. fell 3%.", "The C.E.O. resigned."},
		},
		{
			name: "surrounding whitespace is trimmed",
			text: "  First sentence.   Second sentence.  ",
			want: []string{"First sentence.", "Second sentence."},
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
		{
			name: "whitespace only",
			text: "   \n\t ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitSentences mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedArticle(t *testing.T, store *storage.SQLite, body *string) string {
	t.Helper()
	ctx := context.Background()
	feed := model.Feed{Organization: "Wire", Title: "Business", URL: fmt.Sprintf("http://feeds.test/%s", t.Name())}
	if err := store.EnsureFeed(ctx, &feed); err != nil {
		t.Fatalf("ensure feed: %v", err)
	}
	entry := &model.Entry{Link: "http://articles.test/a1", FeedID: feed.ID, Title: "Markets"}
	if err := store.UpsertEntry(ctx, entry); err != nil {
		t.Fatalf("upsert entry: %v", err)
	}
	article := &model.Article{EntryLink: entry.Link, Title: strPtr("Markets"), Body: body}
	if err := store.UpsertArticle(ctx, article); err != nil {
		t.Fatalf("upsert article: %v", err)
	}
	return article.ID
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }
