package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/altai-labs/magellan/internal/config"
	"github.com/altai-labs/magellan/internal/providers"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.WebSearchConfig{
		BaseURL:    srv.URL,
		MaxResults: 5,
		Timeout:    5 * time.Second,
	}, zaptest.NewLogger(t))
}

func TestSearchFormatsRankedSnippets(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "cocoa production statistics", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("max_results"))
		json.NewEncoder(w).Encode(searchResponse{Results: []Snippet{
			{Title: "Global Cocoa Production", URL: "https://example.com/cocoa", Snippet: "Ivory Coast leads global output.", Domain: "example.com"},
			{Title: "Cocoa Exports", URL: "https://example.com/exports", Snippet: "Ghana ranks second.", Domain: "example.com"},
		}})
	})

	v, err := p.Search(context.Background(), "cocoa production statistics", 3)
	require.NoError(t, err)

	text := v.Normalize()
	assert.Contains(t, text, `Search Results for: "cocoa production statistics"`)
	assert.Contains(t, text, "Found 2 results:")
	assert.Contains(t, text, "1. Global Cocoa Production")
	assert.Contains(t, text, "Ivory Coast leads global output.")
	assert.Contains(t, text, "2. Cocoa Exports")
}

func TestSearchEmptyQueryIsValidationError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("endpoint must not be called")
	})
	_, err := p.Search(context.Background(), "   ", 3)
	var vErr *providers.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestSearchEndpointFailureIsRetryable(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	_, err := p.Search(context.Background(), "copper mining", 3)
	require.Error(t, err)
	assert.True(t, providers.IsRetryable(err))
	assert.Contains(t, err.Error(), "502")
}

func TestSearchNoResults(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{})
	})
	v, err := p.Search(context.Background(), "unobtainium", 3)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v.Normalize(), "No search results found"))
}

func TestSearchCapsResultsAtRequestedMax(t *testing.T) {
	results := make([]Snippet, 10)
	for i := range results {
		results[i] = Snippet{Title: "r", Snippet: "s"}
	}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{Results: results})
	})
	v, err := p.Search(context.Background(), "lithium", 2)
	require.NoError(t, err)
	assert.Contains(t, v.Normalize(), "Found 2 results:")
}

func TestRateLimiterSpacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{})
	}))
	t.Cleanup(srv.Close)
	p := New(config.WebSearchConfig{
		BaseURL:     srv.URL,
		MaxResults:  5,
		MinInterval: 50 * time.Millisecond,
		Timeout:     5 * time.Second,
	}, zaptest.NewLogger(t))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.Search(context.Background(), "tin ore", 1)
		require.NoError(t, err)
	}
	// First request is immediate, the next two wait one interval each.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestFormatResultsFillsMissingFields(t *testing.T) {
	out := FormatResults("x", []Snippet{{}})
	assert.Contains(t, out, "No Title")
	assert.Contains(t, out, "No description available")
}
