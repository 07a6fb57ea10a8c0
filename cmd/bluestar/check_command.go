package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bluestar/internal/config"
	"bluestar/internal/services/llm"
)

const pingTimeout = 30 * time.Second

type readiness struct {
	name     string
	ready    bool
	required bool
	detail   string
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var ping bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report which collaborators are configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := readinessChecks(cfg)
			if ping {
				checks = append(checks, pingInference(cmd.Context(), cfg))
			}

			rows := make([][]string, 0, len(checks))
			missing := 0
			for _, c := range checks {
				rows = append(rows, []string{c.name, yesNo(c.ready), c.detail})
				if c.required && !c.ready {
					missing++
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Component", "Ready", "Detail"}, rows, nil))
			if missing > 0 {
				return fmt.Errorf("%d required component(s) not ready", missing)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ping, "ping", false, "Send a test request to the inference provider")
	return cmd
}

func readinessChecks(cfg *config.Config) []readiness {
	checks := []readiness{
		{name: "github", ready: cfg.GitHub.Token != "", detail: cfg.GitHub.BaseURL},
		{name: "llm", required: true, ready: cfg.LLM.APIKey != "", detail: cfg.LLM.Provider + " / " + cfg.LLM.Model},
		{name: "local", required: true, ready: cfg.Paths.OutputDir != "", detail: cfg.Paths.OutputDir + " (" + cfg.Local.Format + ")"},
		{name: "ghost", ready: cfg.GhostEnabled(), detail: cfg.Ghost.APIURL},
		{name: "notion", ready: cfg.NotionEnabled(), detail: cfg.Notion.DatabaseID},
		{name: "notifications", ready: cfg.Notifications.NtfyTopic != "", detail: cfg.Notifications.NtfyTopic},
	}
	if checks[0].ready {
		checks[0].detail += " (token set)"
	} else {
		checks[0].detail += " (unauthenticated)"
	}
	return checks
}

func pingInference(ctx context.Context, cfg *config.Config) readiness {
	result := readiness{name: "llm ping", required: true}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	completer, err := llm.New(ctx, llm.Config{
		Provider:       cfg.LLM.Provider,
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	if err == nil {
		err = llm.HealthCheck(ctx, completer)
	}
	if err != nil {
		result.detail = err.Error()
		return result
	}
	result.ready = true
	result.detail = "ok"
	return result
}
