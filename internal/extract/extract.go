// Package extract derives article fields from fetched HTML with best-effort
// heuristics. Each heuristic is a pure function over the parsed document and
// yields an absent value rather than an error when its signal is missing.
package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"newslens/internal/model"
	"newslens/internal/storage"
)

// Extractor turns fetched entries into article records.
type Extractor struct {
	store storage.Storage
	log   *slog.Logger
}

// New creates an Extractor.
func New(store storage.Storage, log *slog.Logger) *Extractor {
	return &Extractor{store: store, log: log}
}

// ExtractEntry parses the entry's stored HTML and upserts the article owned
// by it; used as the extract_entry task handler. Entries without HTML, or
// whose Content-Type is not HTML, are skipped so a later sweep can retry
// once the fetch state changes.
func (e *Extractor) ExtractEntry(ctx context.Context, link string) error {
	entry, err := e.store.GetEntry(ctx, link)
	if err != nil {
		if err == storage.ErrNotFound {
			e.log.Warn("entry not found", "link", link)
			return nil
		}
		return err
	}

	if entry.RawHTML == nil {
		e.log.Warn("entry has no fetched html", "link", link)
		return nil
	}
	if !strings.Contains(entry.ContentType(), "html") {
		e.log.Warn("entry content type is not html", "link", link, "content_type", entry.ContentType())
		return nil
	}

	doc, err := Parse(*entry.RawHTML)
	if err != nil {
		e.log.Warn("unparseable html", "link", link, "error", err)
		return nil
	}

	article := &model.Article{
		EntryLink: link,
		Title:     FindTitle(doc),
		Keywords:  FindKeywords(doc),
		Author:    FindAuthor(doc),
		Body:      FindBody(doc),
	}
	return e.store.UpsertArticle(ctx, article)
}

// Parse builds an immutable document tree from raw HTML.
func Parse(rawHTML string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
}

// FindTitle collects candidates from <title> elements in the head and from
// <meta> elements whose name or property contains "title", and returns the
// most frequent trimmed candidate. Ties go to the earliest candidate.
func FindTitle(doc *goquery.Document) *string {
	var candidates []string

	doc.Find("head title").Each(func(_ int, s *goquery.Selection) {
		if t := s.Text(); t != "" {
			candidates = append(candidates, t)
		}
	})
	for _, sel := range []string{`meta[name*="title"]`, `meta[property*="title"]`} {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if v, _ := s.Attr("content"); v != "" {
				candidates = append(candidates, v)
			}
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	counts := make(map[string]int, len(candidates))
	first := make(map[string]int, len(candidates))
	for i, c := range candidates {
		c = strings.TrimSpace(c)
		if _, seen := counts[c]; !seen {
			first[c] = i
		}
		counts[c]++
	}

	var best string
	bestCount := -1
	for c, n := range counts {
		if n > bestCount || (n == bestCount && first[c] < first[best]) {
			best = c
			bestCount = n
		}
	}
	return &best
}

// FindKeywords splits the content of the first <meta> whose name contains
// "keywords" on commas, trimming each token.
func FindKeywords(doc *goquery.Document) []string {
	var keywords []string
	tag := doc.Find(`meta[name*="keywords"]`).First()
	if v, _ := tag.Attr("content"); v != "" {
		for _, kw := range strings.Split(v, ",") {
			keywords = append(keywords, strings.TrimSpace(kw))
		}
	}
	return keywords
}

// FindAuthor reads the content of the first <meta> whose name contains
// "author".
func FindAuthor(doc *goquery.Document) *string {
	tag := doc.Find(`meta[name*="author"]`).First()
	if v, _ := tag.Attr("content"); v != "" {
		author := strings.TrimSpace(v)
		return &author
	}
	return nil
}

// FindBody joins the trimmed descendant text of every <article> element, in
// document order, with single spaces. Whitespace-only text nodes are
// discarded.
func FindBody(doc *goquery.Document) *string {
	var parts []string
	doc.Find("article").Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			collectText(node, &parts)
		}
	})
	if len(parts) == 0 {
		return nil
	}
	body := strings.Join(parts, " ")
	return &body
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
