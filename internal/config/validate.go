package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable. Credentials for optional
// publish targets are not required here; missing ones surface when the
// target is chosen.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateGitHub(); err != nil {
		return err
	}
	if err := c.validatePublishers(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLLM() error {
	if _, ok := providerDefaults[c.LLM.Provider]; !ok {
		return fmt.Errorf("llm.provider must be one of %s (got %q)", strings.Join(Providers(), ", "), c.LLM.Provider)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxIterations < 0 {
		return errors.New("workflow.max_iterations must be zero or positive")
	}
	if c.Workflow.CompletenessThreshold < 0 || c.Workflow.CompletenessThreshold > 1 {
		return errors.New("workflow.completeness_threshold must be between 0 and 1")
	}
	if target := c.Workflow.DefaultTarget; target != "" && !slices.Contains(PublishTargets(), target) {
		return fmt.Errorf("workflow.default_target must be one of %s (got %q)", strings.Join(PublishTargets(), ", "), target)
	}
	return nil
}

func (c *Config) validateGitHub() error {
	if !strings.HasPrefix(c.GitHub.BaseURL, "http://") && !strings.HasPrefix(c.GitHub.BaseURL, "https://") {
		return errors.New("github.base_url must be an http(s) URL")
	}
	return nil
}

func (c *Config) validatePublishers() error {
	if key := c.Ghost.AdminAPIKey; key != "" && !strings.Contains(key, ":") {
		return errors.New("ghost.admin_api_key must have the form <id>:<secret>")
	}
	switch c.Local.Format {
	case "html", "markdown":
	default:
		return fmt.Errorf("local.format must be html or markdown (got %q)", c.Local.Format)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
