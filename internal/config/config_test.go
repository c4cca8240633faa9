package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 3, cfg.Workflow.MaxClarificationAttempts)
	assert.Equal(t, 2, cfg.Workflow.MaxDecompositionAttempts)
	assert.Equal(t, 150, cfg.Workflow.MinReportWords)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openresearch.yaml"), []byte(
		"service:\n  port: 9999\nworkflow:\n  min_report_words: 42\n"), 0o644))
	t.Setenv("CONFIG_PATH", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Service.Port)
	assert.Equal(t, 42, cfg.Workflow.MinReportWords)
	assert.Equal(t, 2112, cfg.Service.MetricsPort, "unset keys keep their defaults")
}

func TestLoad_LegacyEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", t.TempDir())
	t.Setenv("LLM_SERVICE_URL", "http://llm.internal:9000")
	t.Setenv("SEARCH_URL", "http://searx.internal:8888")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://llm.internal:9000", cfg.LLM.BaseURL)
	assert.Equal(t, "http://searx.internal:8888", cfg.Search.BaseURL)
	assert.Equal(t, "redis.internal:6379", cfg.Session.RedisAddr)
	assert.Equal(t, "redis", cfg.Session.Backend)
}

func TestMinWordsFor(t *testing.T) {
	w := WorkflowConfig{MinReportWords: 150, MinSummaryWords: 80, MinBulletWords: 40}
	assert.Equal(t, 150, w.MinWordsFor("full_report"))
	assert.Equal(t, 80, w.MinWordsFor("executive_summary"))
	assert.Equal(t, 40, w.MinWordsFor("bullet_list"))
	assert.Equal(t, 150, w.MinWordsFor("unknown"))
}
