package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClientWithHTTPClient("test-key", "basic", srv.Client())
	c.endpoint = srv.URL
	c.retryDelay = time.Millisecond
	return srv, c
}

func TestSearchDecodesResults(t *testing.T) {
	var calls atomic.Int64
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "capital of France", body["query"])
		assert.Equal(t, "test-key", body["api_key"])
		assert.Equal(t, float64(3), body["max_results"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "Paris", "url": "https://example.com/paris", "content": "Paris is the capital of France."},
				{"title": "France", "url": "https://example.com/france", "content": "France is in Europe."},
			},
		})
	})

	results, err := c.Search(context.Background(), "capital of France", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://example.com/paris", results[0].Source)
	assert.Contains(t, results[0].Content, "Paris")

	// a second identical call issues a second independent request
	_, err = c.Search(context.Background(), "capital of France", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestSearchTruncatesAndDefaultsMaxResults(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// non-positive max_results is replaced with the default before the request
		assert.Equal(t, float64(DefaultMaxResults), body["max_results"])

		results := make([]map[string]string, 0, 10)
		for i := 0; i < 10; i++ {
			results = append(results, map[string]string{"url": "u", "content": "c"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	})

	results, err := c.Search(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultMaxResults)
}

func TestSearchErrors(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	missingKey := NewClient("", "basic")
	_, err = missingKey.Search(context.Background(), "q", 3)
	assert.Error(t, err)

	_, err = c.Search(context.Background(), "   ", 3)
	assert.Error(t, err)
}

func TestSearchRateLimitRetryIsBounded(t *testing.T) {
	var calls atomic.Int64
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Equal(t, int64(maxRateLimitRetries+1), calls.Load())
}
