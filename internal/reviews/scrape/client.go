// Package scrape is a thin client for the hosted scraping service used
// to collect product reviews.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Review is one scraped product review.
type Review struct {
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Rating float64 `json:"rating"`
	Date   string  `json:"date"`
	Author string  `json:"userName"`
	URL    string  `json:"reviewUrl"`
}

// Client calls the scraping service's synchronous run endpoint.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient constructs a client.
func NewClient(baseURL, token string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("scrape client: empty base url")
	}
	if token == "" {
		return nil, errors.New("scrape client: empty token")
	}
	c := &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RunInput is the scrape job description.
type RunInput struct {
	ProductURLs []string `json:"productUrls"`
	MaxReviews  int      `json:"maxReviews"`
}

// RunSync starts an actor run and returns its dataset items once the
// run completes. The call blocks for the duration of the run.
func (c *Client) RunSync(ctx context.Context, actorID string, input RunInput) ([]Review, error) {
	if actorID == "" {
		return nil, errors.New("scrape client: empty actor id")
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items", c.baseURL, actorID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scrape client: status %d", resp.StatusCode)
	}

	var reviews []Review
	if err := json.NewDecoder(resp.Body).Decode(&reviews); err != nil {
		return nil, fmt.Errorf("scrape client: decode items: %w", err)
	}
	return reviews, nil
}
