// Package sentiment scores article bodies sentence by sentence using an
// external polarity classifier.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"newslens/internal/model"
)

// Classifier yields a polarity label and confidence for one sentence.
type Classifier interface {
	Classify(ctx context.Context, sentence string) (model.SentenceSentiment, error)
}

// Client talks to an external inference service over HTTP.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ Classifier = (*Client)(nil)

// NewClient creates a reusable HTTP client for the inference endpoint.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Classify posts the sentence and decodes the {label, score} verdict.
func (c *Client) Classify(ctx context.Context, sentence string) (model.SentenceSentiment, error) {
	payload, err := json.Marshal(map[string]string{"text": sentence})
	if err != nil {
		return model.SentenceSentiment{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return model.SentenceSentiment{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return model.SentenceSentiment{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.SentenceSentiment{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var verdict model.SentenceSentiment
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return model.SentenceSentiment{}, fmt.Errorf("decode response: %w", err)
	}
	return verdict, nil
}
