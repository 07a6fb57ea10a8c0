package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// GitHub contains configuration for the commit data source.
type GitHub struct {
	Token          string `toml:"token"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	CacheSize      int    `toml:"cache_size"`
	MaxDiffChars   int    `toml:"max_diff_chars"`
}

// LLM contains inference provider settings.
type LLM struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains orchestrator limits and run defaults.
type Workflow struct {
	MaxIterations int `toml:"max_iterations"`
	// CompletenessThreshold is the self-reported analysis completeness below
	// which unresolved feedback is treated as a context gap.
	CompletenessThreshold float64 `toml:"completeness_threshold"`
	StageTimeoutSeconds   int     `toml:"stage_timeout_seconds"`
	Autopilot             bool    `toml:"autopilot"`
	DefaultTarget         string  `toml:"default_target"`
	Author                string  `toml:"author"`
}

// Ghost contains Ghost Admin API settings.
type Ghost struct {
	APIURL      string `toml:"api_url"`
	AdminAPIKey string `toml:"admin_api_key"`
}

// Notion contains Notion API settings.
type Notion struct {
	Token      string `toml:"token"`
	DatabaseID string `toml:"database_id"`
}

// Local contains settings for drafts saved to disk.
type Local struct {
	Format string `toml:"format"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bluestar.
//
// Configuration sections by subsystem:
//   - Paths: draft output, logs, and run history locations
//   - GitHub: commit data source credentials and limits
//   - LLM: inference provider, model, and credentials
//   - Workflow: iteration cap, enhancement threshold, run defaults
//   - Ghost / Notion / Local: publish targets
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	GitHub        GitHub        `toml:"github"`
	LLM           LLM           `toml:"llm"`
	Workflow      Workflow      `toml:"workflow"`
	Ghost         Ghost         `toml:"ghost"`
	Notion        Notion        `toml:"notion"`
	Local         Local         `toml:"local"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the expanded per-user configuration path.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads, normalizes, and validates the configuration. Lookup order is
// path, then the per-user file, then ./bluestar.toml; when none exists the
// defaults are used and exists is false. A .env file in the working directory
// seeds the environment without overriding variables already set.
func Load(path string) (cfg *Config, resolved string, exists bool, err error) {
	_ = godotenv.Load()

	resolved, exists, err = resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loaded := Default()
	if exists {
		if err := decodeFile(resolved, &loaded); err != nil {
			return nil, "", false, err
		}
	}
	if err := loaded.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := loaded.Validate(); err != nil {
		return nil, "", false, err
	}
	return &loaded, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		found, err := isFile(expanded)
		return expanded, found, err
	}

	userPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		found, err := isFile(candidate)
		if err != nil {
			return "", false, err
		}
		if found {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	default:
		return !info.IsDir(), nil
	}
}

// EnsureDirectories creates the log and state directories. The output directory
// is created lazily by the local save target.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RunStorePath returns the location of the run history database.
func (c *Config) RunStorePath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// GhostEnabled reports whether the Ghost target has credentials.
func (c *Config) GhostEnabled() bool {
	return strings.TrimSpace(c.Ghost.APIURL) != "" && strings.TrimSpace(c.Ghost.AdminAPIKey) != ""
}

// NotionEnabled reports whether the Notion target has credentials.
func (c *Config) NotionEnabled() bool {
	return strings.TrimSpace(c.Notion.Token) != "" && strings.TrimSpace(c.Notion.DatabaseID) != ""
}

// expandPath resolves a leading ~ to the home directory and returns an
// absolute, cleaned path. Empty input stays empty.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// ExpandPath applies the same expansion used for configured paths.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// CreateSample writes the commented sample configuration to path. The file
// may hold credentials, so it is created owner-readable only.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
