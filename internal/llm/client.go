package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openresearch/orchestrator/internal/circuitbreaker"
	"github.com/openresearch/orchestrator/internal/metrics"
	"github.com/openresearch/orchestrator/internal/prompts"
	"github.com/openresearch/orchestrator/internal/tracing"
)

// Generator produces text from a named prompt template and its variables.
// The core supplies its own fallbacks; no retries are performed here.
type Generator interface {
	Generate(ctx context.Context, promptName string, vars map[string]string) (string, error)
}

// GenerationError wraps provider or transport failures from the LLM service.
type GenerationError struct {
	Prompt string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for prompt %q: %v", e.Prompt, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Config tunes the HTTP generation client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	RPM     int
}

// Client is an HTTP Generator backed by the LLM service's /generate endpoint.
type Client struct {
	cfg      Config
	http     *circuitbreaker.HTTPWrapper
	registry *prompts.Registry
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewClient builds a generation client with rate limiting per RPM.
func NewClient(cfg Config, registry *prompts.Registry, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 60
	}
	return &Client{
		cfg:      cfg,
		http:     circuitbreaker.WrapHTTP(&http.Client{Timeout: cfg.Timeout}, "llm", logger),
		registry: registry,
		limiter:  rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), cfg.RPM),
		logger:   logger,
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Generate renders the named prompt and invokes the LLM service once.
func (c *Client) Generate(ctx context.Context, promptName string, vars map[string]string) (string, error) {
	rendered, err := c.registry.Render(promptName, vars)
	if err != nil {
		metrics.GenerationRequests.WithLabelValues(promptName, "render_error").Inc()
		return "", &GenerationError{Prompt: promptName, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.GenerationRequests.WithLabelValues(promptName, "rate_limited").Inc()
		return "", &GenerationError{Prompt: promptName, Err: err}
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/generate"
	body, _ := json.Marshal(generateRequest{Prompt: rendered})

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		metrics.GenerationRequests.WithLabelValues(promptName, "error").Inc()
		return "", &GenerationError{Prompt: promptName, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.GenerationRequests.WithLabelValues(promptName, "error").Inc()
		return "", &GenerationError{Prompt: promptName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.GenerationRequests.WithLabelValues(promptName, "error").Inc()
		return "", &GenerationError{
			Prompt: promptName,
			Err:    fmt.Errorf("llm service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b))),
		}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.GenerationRequests.WithLabelValues(promptName, "error").Inc()
		return "", &GenerationError{Prompt: promptName, Err: err}
	}

	metrics.GenerationLatency.Observe(time.Since(start).Seconds())
	metrics.GenerationRequests.WithLabelValues(promptName, "ok").Inc()
	c.logger.Debug("Generation completed",
		zap.String("prompt", promptName),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out.Text, nil
}
