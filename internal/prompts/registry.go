package prompts

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"text/template"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Prompt names known to the registry.
const (
	Clarification = "clarification"
	Refinement    = "refinement"
	Decomposition = "decomposition"
	Summarization = "summarization"
	FactCheck     = "fact_check"
	ReportFull    = "report_full"
	ReportSummary = "report_summary"
	ReportBullets = "report_bullets"
)

// Registry holds compiled prompt templates. Built-in defaults are always
// present; a YAML override file may replace any of them and is hot-reloaded.
type Registry struct {
	mu       sync.RWMutex
	compiled map[string]*template.Template
	logger   *zap.Logger
}

// NewRegistry compiles the built-in prompt set.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		compiled: make(map[string]*template.Template),
		logger:   logger,
	}
	for name, text := range builtins {
		tpl, err := template.New(name).Option("missingkey=zero").Parse(text)
		if err != nil {
			// Built-ins are compile-time constants; a parse failure here is a
			// programming error, surface it loudly at startup.
			panic(fmt.Sprintf("builtin prompt %q does not parse: %v", name, err))
		}
		r.compiled[name] = tpl
	}
	return r
}

// LoadOverrides merges templates from a YAML file keyed by prompt name.
// Unknown names are accepted so deployments can carry extra prompts.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt overrides %s: %w", path, err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode prompt overrides %s: %w", path, err)
	}

	parsed := make(map[string]*template.Template, len(raw))
	for name, text := range raw {
		tpl, err := template.New(name).Option("missingkey=zero").Parse(text)
		if err != nil {
			return fmt.Errorf("parse prompt override %q: %w", name, err)
		}
		parsed[name] = tpl
	}

	r.mu.Lock()
	for name, tpl := range parsed {
		r.compiled[name] = tpl
	}
	r.mu.Unlock()

	r.logger.Info("Loaded prompt overrides",
		zap.String("path", path),
		zap.Int("count", len(parsed)),
	)
	return nil
}

// Render executes the named prompt with the supplied variables.
func (r *Registry) Render(name string, vars map[string]string) (string, error) {
	r.mu.RLock()
	tpl, ok := r.compiled[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return buf.String(), nil
}

// ForFormat maps an output format to its report prompt name.
func ForFormat(format string) string {
	switch format {
	case "executive_summary":
		return ReportSummary
	case "bullet_list":
		return ReportBullets
	default:
		return ReportFull
	}
}
