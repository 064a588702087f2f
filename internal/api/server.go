// Package api exposes extracted articles through a read-only search API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"newslens/internal/model"
	"newslens/internal/storage"
)

const (
	defaultLimit = 30
	maxLimit     = 100
)

// Server handles HTTP requests for the article search API.
type Server struct {
	store storage.Storage
	addr  string
	log   *slog.Logger
}

// New creates an API server.
func New(store storage.Storage, addr string, log *slog.Logger) *Server {
	return &Server{store: store, addr: addr, log: log}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /articles", s.listArticles)
	mux.HandleFunc("GET /articles/{id}", s.getArticle)
	mux.HandleFunc("GET /health", s.health)
	return withCORS(mux)
}

// Run serves requests until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("serving api", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// withCORS adds CORS headers for frontend development.
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListResponse is a paginated search result.
type ListResponse struct {
	Count   int          `json:"count"`
	Results []ArticleDoc `json:"results"`
}

// ArticleDoc is the flat article projection served to consumers.
type ArticleDoc struct {
	ID               string       `json:"id"`
	URL              string       `json:"url"`
	Title            *string      `json:"title"`
	Author           *string      `json:"author"`
	PublicationDate  *time.Time   `json:"publication_date"`
	OverallSentiment OverallDoc   `json:"overall_sentiment"`
	Keywords         []KeywordDoc `json:"keywords"`
	Body             *string      `json:"body"`
	Sentiment        []SentenceDoc `json:"sentiment"`
}

// KeywordDoc wraps one keyword for the search index shape.
type KeywordDoc struct {
	Key string `json:"key"`
}

// SentenceDoc pairs a sentence with its classification.
type SentenceDoc struct {
	Sentence  string                  `json:"sentence"`
	Sentiment model.SentenceSentiment `json:"sentiment"`
}

// OverallDoc is the aggregate sentiment summary, recomputed on every read.
type OverallDoc struct {
	Label   model.SentimentLabel `json:"label"`
	Average *float64             `json:"average"`
	Stdev   float64              `json:"stdev"`
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := q.Get("search")

	limit := defaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxLimit)
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}

	docs, count, err := s.store.SearchArticles(r.Context(), search, limit, offset)
	if err != nil {
		s.log.Error("search articles", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	results := make([]ArticleDoc, 0, len(docs))
	for i := range docs {
		results = append(results, projectArticle(&docs[i]))
	}
	writeJSON(w, http.StatusOK, ListResponse{Count: count, Results: results})
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetArticleDoc(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		s.log.Error("get article", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, projectArticle(doc))
}

func projectArticle(doc *model.ArticleDoc) ArticleDoc {
	keywords := make([]KeywordDoc, 0, len(doc.Keywords))
	for _, kw := range doc.Keywords {
		keywords = append(keywords, KeywordDoc{Key: kw})
	}

	sentiment := make([]SentenceDoc, 0, len(doc.Sentiment))
	for sentence, verdict := range doc.Sentiment {
		sentiment = append(sentiment, SentenceDoc{Sentence: sentence, Sentiment: verdict})
	}
	sort.Slice(sentiment, func(i, j int) bool {
		return sentiment[i].Sentence < sentiment[j].Sentence
	})

	overall := model.Overall(doc.Sentiment)

	return ArticleDoc{
		ID:              doc.ID,
		URL:             doc.URL(),
		Title:           doc.Title,
		Author:          doc.Author,
		PublicationDate: doc.PublicationDate(),
		OverallSentiment: OverallDoc{
			Label:   overall.Label,
			Average: overall.Average,
			Stdev:   overall.StdDev,
		},
		Keywords:  keywords,
		Body:      doc.Body,
		Sentiment: sentiment,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
