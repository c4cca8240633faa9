package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/agents"
	"github.com/openresearch/orchestrator/internal/config"
	"github.com/openresearch/orchestrator/internal/health"
	"github.com/openresearch/orchestrator/internal/httpapi"
	"github.com/openresearch/orchestrator/internal/llm"
	"github.com/openresearch/orchestrator/internal/prompts"
	"github.com/openresearch/orchestrator/internal/registry"
	"github.com/openresearch/orchestrator/internal/search"
	"github.com/openresearch/orchestrator/internal/tracing"
	"github.com/openresearch/orchestrator/internal/workflow"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("Tracing initialization failed, continuing without traces", zap.Error(err))
	}

	// Session registry backend
	var reg registry.Registry
	switch cfg.Session.Backend {
	case "redis":
		r, err := registry.NewRedis(cfg.Session.RedisAddr, cfg.Session.TTL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis registry", zap.Error(err))
		}
		reg = r
	default:
		reg = registry.NewMemory(logger)
	}
	defer reg.Close()

	// Prompt registry with optional file overrides and hot reload
	promptReg := prompts.NewRegistry(logger)
	if cfg.Prompts.Path != "" {
		if err := promptReg.LoadOverrides(cfg.Prompts.Path); err != nil {
			logger.Warn("Failed to load prompt overrides, using built-ins",
				zap.String("path", cfg.Prompts.Path), zap.Error(err))
		}
		if cfg.Prompts.Watch {
			// Watch blocks until ctx is cancelled.
			go func() {
				if err := promptReg.Watch(ctx, cfg.Prompts.Path); err != nil {
					logger.Warn("Prompt hot reload unavailable", zap.Error(err))
				}
			}()
		}
	}

	// Downstream collaborators
	generator := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
		RPM:     cfg.LLM.RPM,
	}, promptReg, logger)
	searcher := search.NewClient(search.Config{
		BaseURL: cfg.Search.BaseURL,
		Timeout: cfg.Search.Timeout,
		RPM:     cfg.Search.RPM,
	}, logger)

	ag := agents.New(generator, searcher, cfg.Workflow, logger)
	orch := workflow.New(reg, ag, cfg.Workflow, logger)

	// Health endpoints come up before the API so probes respond during startup.
	hm := health.NewManager(logger)
	if r, ok := reg.(*registry.Redis); ok {
		hm.RegisterChecker(health.NewRedisHealthChecker(r.Client(), logger))
	}
	hm.RegisterChecker(health.NewHTTPServiceChecker("llm", cfg.LLM.BaseURL+"/health", false, logger))
	hm.RegisterChecker(health.NewHTTPServiceChecker("search", cfg.Search.BaseURL+"/healthz", false, logger))

	adminMux := http.NewServeMux()
	health.NewHTTPHandler(hm, logger).RegisterRoutes(adminMux)
	adminMux.Handle("/metrics", promhttp.Handler())
	adminSrv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Service.MetricsPort),
		Handler:      adminMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("Admin HTTP server listening", zap.Int("port", cfg.Service.MetricsPort))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin HTTP server failed", zap.Error(err))
		}
	}()

	apiSrv := httpapi.StartResearchServer(cfg.Service.Port, orch, reg, logger)

	logger.Info("Research orchestrator started",
		zap.Int("port", cfg.Service.Port),
		zap.String("registry", cfg.Session.Backend),
		zap.String("llm", cfg.LLM.BaseURL),
		zap.String("search", cfg.Search.BaseURL),
	)

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.GracefulTimeout)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown error", zap.Error(err))
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Admin server shutdown error", zap.Error(err))
	}
	logger.Info("Research orchestrator stopped")
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	if lvl, err := zap.ParseAtomicLevel(cfg.Level); err == nil {
		zc.Level = lvl
	}
	if os.Getenv("LOG_LEVEL") != "" {
		if lvl, err := zap.ParseAtomicLevel(os.Getenv("LOG_LEVEL")); err == nil {
			zc.Level = lvl
		}
	}
	return zc.Build()
}
