package config

const (
	defaultConfigPath            = "~/.config/bluestar/config.toml"
	projectConfigName            = "bluestar.toml"
	defaultOutputDir             = "output"
	defaultLogDir                = "~/.local/share/bluestar/logs"
	defaultStateDir              = "~/.local/share/bluestar"
	defaultGitHubBaseURL         = "https://api.github.com"
	defaultGitHubTimeoutSeconds  = 30
	defaultGitHubCacheSize       = 256
	defaultMaxDiffChars          = 50000
	defaultLLMProvider           = "openai"
	defaultLLMTimeoutSeconds     = 120
	defaultMaxIterations         = 3
	defaultCompletenessThreshold = 0.6
	defaultStageTimeoutSeconds   = 180
	defaultAuthor                = "BlueStar AI"
	defaultLocalFormat           = "html"
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// providerDefaults lists the model and credential environment variable used
// when the config does not name them explicitly.
var providerDefaults = map[string]struct {
	model  string
	envKey string
	base   string
}{
	"openai":     {model: "gpt-4.1", envKey: "OPENAI_API_KEY", base: "https://api.openai.com/v1/chat/completions"},
	"openrouter": {model: "google/gemini-2.5-flash", envKey: "OPENROUTER_API_KEY", base: "https://openrouter.ai/api/v1/chat/completions"},
	"claude":     {model: "claude-sonnet-4-20250514", envKey: "ANTHROPIC_API_KEY", base: "https://api.anthropic.com/v1/messages"},
	"gemini":     {model: "gemini-2.5-pro", envKey: "GOOGLE_API_KEY"},
}

// Providers returns the supported inference provider names.
func Providers() []string {
	return []string{"openai", "openrouter", "claude", "gemini"}
}

// PublishTargets returns the disposition targets accepted by --target and
// workflow.default_target.
func PublishTargets() []string {
	return []string{"ghost", "notion", "local", "discard"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		GitHub: GitHub{
			BaseURL:        defaultGitHubBaseURL,
			TimeoutSeconds: defaultGitHubTimeoutSeconds,
			CacheSize:      defaultGitHubCacheSize,
			MaxDiffChars:   defaultMaxDiffChars,
		},
		LLM: LLM{
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Workflow: Workflow{
			MaxIterations:         defaultMaxIterations,
			CompletenessThreshold: defaultCompletenessThreshold,
			StageTimeoutSeconds:   defaultStageTimeoutSeconds,
			Author:                defaultAuthor,
		},
		Local: Local{
			Format: defaultLocalFormat,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
