// Package websearch adapts an HTTP search endpoint to the engine's
// search contract: ranked snippets formatted into one research text
// block, with a minimum interval between outbound requests.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/altai-labs/magellan/internal/config"
	"github.com/altai-labs/magellan/internal/providers"
	"github.com/altai-labs/magellan/internal/tracing"
)

// Snippet is one ranked search result.
type Snippet struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain"`
}

type searchResponse struct {
	Results []Snippet `json:"results"`
}

// Provider implements providers.SearchProvider against a JSON search
// endpoint: GET {base}/search?q=...&max_results=N.
type Provider struct {
	baseURL    string
	maxResults int
	client     *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New creates the provider. MinInterval throttles outbound requests;
// the endpoint bans callers that hammer it.
func New(cfg config.WebSearchConfig, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return &Provider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxResults: maxResults,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

// Search fetches ranked snippets and renders them as one text block.
func (p *Provider) Search(ctx context.Context, query string, maxResults int) (providers.Value, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return providers.Value{}, &providers.ValidationError{Field: "query", Reason: "cannot be empty"}
	}
	if maxResults <= 0 || maxResults > p.maxResults {
		maxResults = p.maxResults
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return providers.Value{}, providers.NewProviderError("web_search", "rate_limit", err)
	}

	u := fmt.Sprintf("%s/search?q=%s&max_results=%s",
		p.baseURL, url.QueryEscape(query), strconv.Itoa(maxResults))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return providers.Value{}, providers.NewProviderError("web_search", "search", err)
	}
	req.Header.Set("Accept", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := p.client.Do(req)
	if err != nil {
		return providers.Value{}, providers.NewProviderError("web_search", "search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return providers.Value{}, providers.NewProviderError("web_search", "search",
			fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return providers.Value{}, providers.NewProviderError("web_search", "search",
			fmt.Errorf("decode response: %w", err))
	}
	if len(sr.Results) > maxResults {
		sr.Results = sr.Results[:maxResults]
	}
	p.logger.Debug("Search completed",
		zap.String("query", query),
		zap.Int("results", len(sr.Results)),
	)

	// The block travels as a single-element list whose map carries the
	// text, matching the shape Normalize expects from record sequences.
	return providers.List(providers.Map(map[string]providers.Value{
		"type": providers.Text("text"),
		"text": providers.Text(FormatResults(query, sr.Results)),
	})), nil
}

// FormatResults renders ranked snippets into the research text the
// analysis prompts consume.
func FormatResults(query string, results []Snippet) string {
	if len(results) == 0 {
		return fmt.Sprintf("No search results found for query: %q", query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Search Results for: %q\n", query)
	fmt.Fprintf(&sb, "Found %d results:\n", len(results))
	sb.WriteString(strings.Repeat("=", 50))
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "No Title"
		}
		snippet := r.Snippet
		if snippet == "" {
			snippet = "No description available"
		}
		fmt.Fprintf(&sb, "\n\n%d. %s\n", i+1, title)
		if r.URL != "" {
			fmt.Fprintf(&sb, "   URL: %s\n", r.URL)
		}
		if r.Domain != "" {
			fmt.Fprintf(&sb, "   Domain: %s\n", r.Domain)
		}
		fmt.Fprintf(&sb, "   Description: %s\n", snippet)
		sb.WriteString(strings.Repeat("-", 40))
	}
	return sb.String()
}
