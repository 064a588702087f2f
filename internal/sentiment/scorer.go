package sentiment

import (
	"context"
	"log/slog"
	"strings"

	"github.com/clipperhouse/uax29/v2/sentences"

	"newslens/internal/model"
	"newslens/internal/storage"
)

// Scorer assigns per-sentence sentiment to extracted articles.
type Scorer struct {
	store      storage.Storage
	classifier Classifier
	log        *slog.Logger
}

// NewScorer wires the scorer's collaborators.
func NewScorer(store storage.Storage, classifier Classifier, log *slog.Logger) *Scorer {
	return &Scorer{store: store, classifier: classifier, log: log}
}

// ScoreArticle classifies each sentence of the article body and stores the
// resulting mapping; used as the score_article task handler. Scoring is
// one-shot: an article with a non-empty sentiment mapping is a no-op, and a
// classifier failure leaves the article unscored for the next sweep rather
// than persisting a partial mapping.
func (s *Scorer) ScoreArticle(ctx context.Context, articleID string) error {
	article, err := s.store.GetArticle(ctx, articleID)
	if err != nil {
		if err == storage.ErrNotFound {
			s.log.Warn("article not found", "article_id", articleID)
			return nil
		}
		return err
	}

	if article.Scored() {
		s.log.Info("article already scored", "article_id", articleID)
		return nil
	}
	if article.Body == nil || *article.Body == "" {
		s.log.Warn("article has no body to score", "article_id", articleID)
		return nil
	}

	result := make(map[string]model.SentenceSentiment)
	for _, sentence := range SplitSentences(*article.Body) {
		verdict, err := s.classifier.Classify(ctx, sentence)
		if err != nil {
			s.log.Warn("classify sentence", "article_id", articleID, "error", err)
			return nil
		}
		// Identical sentences collapse to one key; the last verdict wins.
		result[sentence] = verdict
	}
	if len(result) == 0 {
		s.log.Warn("no sentences found in body", "article_id", articleID)
		return nil
	}

	return s.store.SaveSentiment(ctx, articleID, result)
}

// SplitSentences segments text on UAX #29 sentence boundaries, trimming each
// sentence and dropping empty ones.
func SplitSentences(text string) []string {
	var out []string
	tokens := sentences.FromString(text)
	for tokens.Next() {
		if s := strings.TrimSpace(tokens.Value()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
