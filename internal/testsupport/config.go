package testsupport

import (
	"path/filepath"
	"testing"

	"bluestar/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Credentials are placeholders so validation passes without network access.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.GitHub.Token = "test-token"
	cfgVal.LLM.Provider = "openai"
	cfgVal.LLM.APIKey = "test-key"
	cfgVal.LLM.Model = "test-model"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithGitHubURL points the commit source at a test server.
func WithGitHubURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.GitHub.BaseURL = url
	}
}

// WithLLMURL points the inference provider at a test server.
func WithLLMURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithGhost enables the Ghost target against a test server.
func WithGhost(url, adminKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ghost.APIURL = url
		b.cfg.Ghost.AdminAPIKey = adminKey
	}
}

// WithLocalFormat overrides the local draft format.
func WithLocalFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Local.Format = format
	}
}

// WithMaxIterations overrides the refinement loop budget.
func WithMaxIterations(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxIterations = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
