package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full orchestrator configuration, loaded from
// openresearch.yaml with env overrides layered on top.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Session  SessionConfig  `mapstructure:"session"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Search   SearchConfig   `mapstructure:"search"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Prompts  PromptsConfig  `mapstructure:"prompts"`
}

// ServiceConfig contains HTTP server settings.
type ServiceConfig struct {
	Port            int           `mapstructure:"port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig controls OTLP tracing.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// SessionConfig selects and tunes the registry backend.
type SessionConfig struct {
	Backend   string        `mapstructure:"backend"` // "memory" or "redis"
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// LLMConfig configures the generation collaborator.
type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	RPM     int           `mapstructure:"rpm"`
}

// SearchConfig configures the retrieval collaborator.
type SearchConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	RPM     int           `mapstructure:"rpm"`
}

// WorkflowConfig holds the tunable knobs of the state machine and agents.
type WorkflowConfig struct {
	MaxClarificationAttempts int `mapstructure:"max_clarification_attempts"`
	MaxDecompositionAttempts int `mapstructure:"max_decomposition_attempts"`

	// Evidence gathering budget
	MaxSearchQuestions   int           `mapstructure:"max_search_questions"`
	MinSearchQuestions   int           `mapstructure:"min_search_questions"`
	SearchBudgetPerDepth time.Duration `mapstructure:"search_budget_per_depth"`

	// Summarization bound
	MaxSummaryQuestions int `mapstructure:"max_summary_questions"`

	// Outline detection heuristics; approximate by nature, so tunable.
	OutlineMarkerThreshold int `mapstructure:"outline_marker_threshold"`
	OutlineLongLineMax     int `mapstructure:"outline_long_line_max"`
	OutlineLongLineLength  int `mapstructure:"outline_long_line_length"`

	// Minimum report word counts gating the completed status.
	MinReportWords  int `mapstructure:"min_report_words"`
	MinSummaryWords int `mapstructure:"min_summary_words"`
	MinBulletWords  int `mapstructure:"min_bullet_words"`
}

// PromptsConfig points at the optional prompt override file.
type PromptsConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// MinWordsFor returns the completion threshold for an output format.
func (w WorkflowConfig) MinWordsFor(format string) int {
	switch format {
	case "executive_summary":
		return w.MinSummaryWords
	case "bullet_list":
		return w.MinBulletWords
	default:
		return w.MinReportWords
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.port", 8080)
	v.SetDefault("service.metrics_port", 2112)
	v.SetDefault("service.graceful_timeout", "15s")
	v.SetDefault("service.read_timeout", "30s")
	v.SetDefault("service.write_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "openresearch-orchestrator")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.ttl", "24h")

	v.SetDefault("llm.base_url", "http://llm-service:8000")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.rpm", 60)

	v.SetDefault("search.base_url", "http://searxng:8080")
	v.SetDefault("search.timeout", "10s")
	v.SetDefault("search.rpm", 120)

	v.SetDefault("workflow.max_clarification_attempts", 3)
	v.SetDefault("workflow.max_decomposition_attempts", 2)
	v.SetDefault("workflow.max_search_questions", 5)
	v.SetDefault("workflow.min_search_questions", 2)
	v.SetDefault("workflow.search_budget_per_depth", "5s")
	v.SetDefault("workflow.max_summary_questions", 5)
	v.SetDefault("workflow.outline_marker_threshold", 5)
	v.SetDefault("workflow.outline_long_line_max", 10)
	v.SetDefault("workflow.outline_long_line_length", 100)
	v.SetDefault("workflow.min_report_words", 150)
	v.SetDefault("workflow.min_summary_words", 80)
	v.SetDefault("workflow.min_bullet_words", 40)

	v.SetDefault("prompts.path", "")
	v.SetDefault("prompts.watch", true)
}

// Load reads openresearch.yaml from CONFIG_PATH, ./config, or /app/config.
// A missing file is not an error; defaults and env overrides still apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("openresearch")
	v.SetConfigType("yaml")
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		v.AddConfigPath(p)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath("/app/config")

	v.SetEnvPrefix("OPENRESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Legacy env overrides used by deploy scripts.
	if u := os.Getenv("LLM_SERVICE_URL"); u != "" {
		cfg.LLM.BaseURL = u
	}
	if u := os.Getenv("SEARCH_URL"); u != "" {
		cfg.Search.BaseURL = u
	}
	if a := os.Getenv("REDIS_ADDR"); a != "" {
		cfg.Session.RedisAddr = a
		cfg.Session.Backend = "redis"
	}

	return &cfg, nil
}
