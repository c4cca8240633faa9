package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultCheckTimeout = 5 * time.Second

// RedisHealthChecker checks session registry connectivity.
type RedisHealthChecker struct {
	client  redis.UniversalClient
	logger  *zap.Logger
	timeout time.Duration
}

// NewRedisHealthChecker creates a Redis health checker
func NewRedisHealthChecker(client redis.UniversalClient, logger *zap.Logger) *RedisHealthChecker {
	return &RedisHealthChecker{
		client:  client,
		logger:  logger,
		timeout: defaultCheckTimeout,
	}
}

func (r *RedisHealthChecker) Name() string           { return "redis" }
func (r *RedisHealthChecker) IsCritical() bool       { return true }
func (r *RedisHealthChecker) Timeout() time.Duration { return r.timeout }

func (r *RedisHealthChecker) Check(ctx context.Context) CheckResult {
	startTime := time.Now()
	result := CheckResult{
		Component: "redis",
		Critical:  true,
		Timestamp: startTime,
	}

	err := r.client.Ping(ctx).Err()
	result.Duration = time.Since(startTime)

	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Redis ping failed"
		return result
	}

	if result.Duration > 100*time.Millisecond {
		result.Status = StatusDegraded
		result.Message = "Redis responding but with high latency"
	} else {
		result.Status = StatusHealthy
		result.Message = "Redis healthy"
	}
	result.Details = map[string]interface{}{
		"latency_ms": result.Duration.Milliseconds(),
	}
	return result
}

// HTTPServiceChecker checks a downstream HTTP dependency (LLM or search
// service) by probing its health endpoint. Downstream services are
// non-critical: the workflow degrades to fallback content without them.
type HTTPServiceChecker struct {
	name     string
	url      string
	client   *http.Client
	logger   *zap.Logger
	timeout  time.Duration
	critical bool
}

// NewHTTPServiceChecker creates a checker that GETs the given URL.
func NewHTTPServiceChecker(name, url string, critical bool, logger *zap.Logger) *HTTPServiceChecker {
	return &HTTPServiceChecker{
		name:     name,
		url:      url,
		client:   &http.Client{Timeout: defaultCheckTimeout},
		logger:   logger,
		timeout:  defaultCheckTimeout,
		critical: critical,
	}
}

func (h *HTTPServiceChecker) Name() string           { return h.name }
func (h *HTTPServiceChecker) IsCritical() bool       { return h.critical }
func (h *HTTPServiceChecker) Timeout() time.Duration { return h.timeout }

func (h *HTTPServiceChecker) Check(ctx context.Context) CheckResult {
	startTime := time.Now()
	result := CheckResult{
		Component: h.name,
		Critical:  h.critical,
		Timestamp: startTime,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Duration = time.Since(startTime)
		return result
	}

	resp, err := h.client.Do(req)
	result.Duration = time.Since(startTime)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = fmt.Sprintf("%s unreachable", h.name)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("%s returned %d", h.name, resp.StatusCode)
		return result
	}
	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("%s healthy", h.name)
	result.Details = map[string]interface{}{
		"status_code": resp.StatusCode,
		"latency_ms":  result.Duration.Milliseconds(),
	}
	return result
}
