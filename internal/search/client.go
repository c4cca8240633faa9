package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openresearch/orchestrator/internal/circuitbreaker"
	"github.com/openresearch/orchestrator/internal/metrics"
	"github.com/openresearch/orchestrator/internal/tracing"
)

// Config tunes the HTTP search client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	RPM     int
}

// Client queries a SearxNG-compatible JSON endpoint. Results are cached by
// query text; the cache is idempotent and side-effect-free to reuse, so it is
// the one cross-call structure the stateless-agents rule permits.
type Client struct {
	cfg     Config
	http    *circuitbreaker.HTTPWrapper
	limiter *rate.Limiter
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[string][]Result
}

// NewClient builds a search client with rate limiting per RPM.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 120
	}
	return &Client{
		cfg:     cfg,
		http:    circuitbreaker.WrapHTTP(&http.Client{Timeout: cfg.Timeout}, "search", logger),
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), cfg.RPM),
		logger:  logger,
		cache:   make(map[string][]Result),
	}
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search performs one bounded search request, serving repeats from cache.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	c.mu.RLock()
	cached, ok := c.cache[query]
	c.mu.RUnlock()
	if ok {
		metrics.SearchCacheHits.Inc()
		return limitResults(cached, maxResults), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.SearchRequests.WithLabelValues("rate_limited").Inc()
		return nil, &SearchError{Query: query, Err: err}
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.QueryEscape(query))

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodGet, endpoint)
	defer span.End()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		return nil, &SearchError{Query: query, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		return nil, &SearchError{Query: query, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		return nil, &SearchError{Query: query, Err: fmt.Errorf("search returned %d", resp.StatusCode)}
	}

	var out searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		return nil, &SearchError{Query: query, Err: err}
	}

	results := make([]Result, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Content})
	}

	c.mu.Lock()
	c.cache[query] = results
	c.mu.Unlock()

	metrics.SearchLatency.Observe(time.Since(start).Seconds())
	metrics.SearchRequests.WithLabelValues("ok").Inc()
	c.logger.Debug("Search completed",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)
	return limitResults(results, maxResults), nil
}

func limitResults(results []Result, max int) []Result {
	if max > 0 && len(results) > max {
		return results[:max]
	}
	return results
}
