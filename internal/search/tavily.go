package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	logx "github.com/alexwox/research-assistant/pkg/logger"
)

const (
	// DefaultMaxResults is applied when the caller requests a non-positive
	// number of results.
	DefaultMaxResults = 3

	defaultEndpoint = "https://api.tavily.com/search"
	maxBackoff      = 30 * time.Second
	// maxRateLimitRetries bounds the 429 backoff loop. This is a deliberate,
	// explicitly bounded per-tool policy, separate from synthesis retries.
	maxRateLimitRetries = 3
)

// Result is one ranked snippet returned by the web search tool.
type Result struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Client calls the Tavily search API. Each Search call is an independent
// HTTP request: no caching, no dedup across calls.
type Client struct {
	apiKey     string
	depth      string
	endpoint   string
	retryDelay time.Duration
	client     *http.Client
}

// NewClient constructs a Tavily client. Depth defaults to "basic".
func NewClient(apiKey, depth string) *Client {
	return NewClientWithHTTPClient(apiKey, depth, &http.Client{Timeout: 10 * time.Second})
}

// NewClientWithHTTPClient constructs a Tavily client using the supplied HTTP
// client. Useful for overriding the default timeout.
func NewClientWithHTTPClient(apiKey, depth string, client *http.Client) *Client {
	if depth == "" {
		depth = "basic"
	}
	return &Client{apiKey: apiKey, depth: depth, endpoint: defaultEndpoint, retryDelay: time.Second, client: client}
}

// Search posts a query to Tavily and returns at most maxResults snippets.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("tavily: query is empty")
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	body := map[string]any{
		"query":       query,
		"api_key":     c.apiKey,
		"depth":       c.depth,
		"max_results": maxResults,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	delay := c.retryDelay
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = c.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRateLimitRetries {
			break
		}
		resp.Body.Close()

		logx.Warn().Int("attempt", attempt+1).Dur("delay", delay).Msg("tavily rate limited, backing off")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < maxBackoff {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily: http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	results := make([]Result, 0, maxResults)
	for _, r := range response.Results {
		source := r.URL
		if source == "" {
			source = r.Title
		}
		results = append(results, Result{Source: source, Content: r.Content})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}
