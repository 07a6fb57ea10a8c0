package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGitHub()
	c.normalizeLLM()
	c.normalizeWorkflow()
	c.normalizePublishers()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeGitHub() {
	c.GitHub.Token = strings.TrimSpace(c.GitHub.Token)
	if c.GitHub.Token == "" {
		c.GitHub.Token = lookupEnv("GITHUB_TOKEN")
	}
	c.GitHub.BaseURL = strings.TrimRight(strings.TrimSpace(c.GitHub.BaseURL), "/")
	if c.GitHub.BaseURL == "" {
		c.GitHub.BaseURL = defaultGitHubBaseURL
	}
	if c.GitHub.TimeoutSeconds <= 0 {
		c.GitHub.TimeoutSeconds = defaultGitHubTimeoutSeconds
	}
	if c.GitHub.CacheSize <= 0 {
		c.GitHub.CacheSize = defaultGitHubCacheSize
	}
	if c.GitHub.MaxDiffChars <= 0 {
		c.GitHub.MaxDiffChars = defaultMaxDiffChars
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = strings.ToLower(lookupEnv("BLUESTAR_LLM_PROVIDER"))
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultLLMProvider
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if defaults, ok := providerDefaults[c.LLM.Provider]; ok {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = lookupEnv(defaults.envKey)
		}
		if c.LLM.Model == "" {
			c.LLM.Model = defaults.model
		}
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = defaults.base
		}
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.StageTimeoutSeconds <= 0 {
		c.Workflow.StageTimeoutSeconds = defaultStageTimeoutSeconds
	}
	c.Workflow.DefaultTarget = strings.ToLower(strings.TrimSpace(c.Workflow.DefaultTarget))
	c.Workflow.Author = strings.TrimSpace(c.Workflow.Author)
	if c.Workflow.Author == "" {
		c.Workflow.Author = defaultAuthor
	}
}

func (c *Config) normalizePublishers() {
	c.Ghost.APIURL = strings.TrimRight(strings.TrimSpace(c.Ghost.APIURL), "/")
	if c.Ghost.APIURL == "" {
		c.Ghost.APIURL = strings.TrimRight(lookupEnv("GHOST_API_URL"), "/")
	}
	c.Ghost.AdminAPIKey = strings.TrimSpace(c.Ghost.AdminAPIKey)
	if c.Ghost.AdminAPIKey == "" {
		c.Ghost.AdminAPIKey = lookupEnv("GHOST_ADMIN_API_KEY")
	}
	c.Notion.Token = strings.TrimSpace(c.Notion.Token)
	if c.Notion.Token == "" {
		c.Notion.Token = lookupEnv("NOTION_TOKEN")
	}
	c.Notion.DatabaseID = strings.TrimSpace(c.Notion.DatabaseID)
	if c.Notion.DatabaseID == "" {
		c.Notion.DatabaseID = lookupEnv("NOTION_DATABASE_ID")
	}
	c.Local.Format = strings.ToLower(strings.TrimSpace(c.Local.Format))
	if c.Local.Format == "" {
		c.Local.Format = defaultLocalFormat
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = lookupEnv("BLUESTAR_NTFY_TOPIC")
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
