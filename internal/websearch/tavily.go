package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codenav/codenav/pkg/types"
)

const (
	tavilyURL = "https://api.tavily.com/search"

	// DefaultMaxResults keeps external context small relative to
	// repository chunks.
	DefaultMaxResults = 3
)

// Result is one external source returned by the search API.
type Result struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// Client queries the Tavily search API for supplementary web context.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option adjusts a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// NewClient creates a Tavily client. The API key must be non-empty.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing Tavily API key", types.ErrConfig)
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: tavilyURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// searchAttempts bounds retries on transient failures. Web context is
// supplementary, so the budget stays small.
const searchAttempts = 2

// Search runs one web search. maxResults <= 0 uses the default.
// Transient failures get one retry before surfacing.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", types.ErrEmptyContent)
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	var lastErr error
	for attempt := range searchAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
		}
		results, err := c.search(ctx, query, maxResults)
		if err == nil {
			return results, nil
		}
		lastErr = err
		if !errors.Is(err, types.ErrProviderUnavailable) {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	body, err := json.Marshal(map[string]any{
		"api_key":        c.apiKey,
		"query":          query,
		"search_depth":   "advanced",
		"include_answer": false,
		"max_results":    maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: tavily: %v", types.ErrProviderUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: tavily error %d: %s",
			types.ErrProviderUnavailable, resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]Result, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

// Sources converts results to the wire form used in responses.
func Sources(results []Result) []types.RetrievedSource {
	sources := make([]types.RetrievedSource, 0, len(results))
	for _, r := range results {
		sources = append(sources, types.RetrievedSource{Title: r.Title, URL: r.URL})
	}
	return sources
}
