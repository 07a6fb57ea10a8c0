package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bluestar/internal/config"
	"bluestar/internal/github"
	"bluestar/internal/infer"
	"bluestar/internal/logging"
	"bluestar/internal/notifications"
	"bluestar/internal/publish"
	"bluestar/internal/review"
	"bluestar/internal/runstore"
	"bluestar/internal/services"
	"bluestar/internal/services/llm"
	"bluestar/internal/workflow"
)

// errRunFailed signals a failed run whose summary was already printed.
var errRunFailed = errors.New("run failed")

type generateOptions struct {
	repo          string
	sha           string
	guidance      string
	maxIterations int
	target        string
	autopilot     bool
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Draft, review, and publish an article for one commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-iterations") {
				opts.maxIterations = cfg.Workflow.MaxIterations
			}
			if !cmd.Flags().Changed("autopilot") {
				opts.autopilot = cfg.Workflow.Autopilot
			}
			if strings.TrimSpace(opts.target) == "" {
				opts.target = cfg.Workflow.DefaultTarget
			}
			return runGenerate(cmd, cfg, logger, opts)
		},
	}

	cmd.Flags().StringVar(&opts.repo, "repo", "", "Repository as owner/name")
	cmd.Flags().StringVar(&opts.sha, "sha", "", "Commit SHA (7 to 40 hex characters)")
	cmd.Flags().StringVarP(&opts.guidance, "guidance", "g", "", "Optional direction for the article")
	cmd.Flags().IntVarP(&opts.maxIterations, "max-iterations", "n", 0, "Refinement rounds allowed after the first draft")
	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "Preset destination: ghost, notion, local, or discard")
	cmd.Flags().BoolVar(&opts.autopilot, "autopilot", false, "Approve the first draft without prompting")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("sha")

	return cmd
}

func runGenerate(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, opts generateOptions) error {
	in := cmd.InOrStdin()
	out := cmd.OutOrStdout()

	presenter, decider, err := reviewers(in, out, opts)
	if err != nil {
		return err
	}
	collab, err := buildCollaborators(cmd, cfg, logger)
	if err != nil {
		return err
	}
	collab.Presenter = presenter
	collab.Decider = decider

	store, err := runstore.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	orchestrator, err := workflow.New(collab,
		workflow.WithLogger(logger),
		workflow.WithTracer(store),
		workflow.WithNotifier(notifications.NewService(cfg)),
		workflow.WithStageTimeout(time.Duration(cfg.Workflow.StageTimeoutSeconds)*time.Second),
		workflow.WithCompletenessThreshold(cfg.Workflow.CompletenessThreshold),
	)
	if err != nil {
		return err
	}

	state, runErr := orchestrator.Run(cmd.Context(), workflow.Input{
		Repo:          opts.repo,
		SHA:           opts.sha,
		Guidance:      opts.guidance,
		MaxIterations: opts.maxIterations,
		Target:        opts.target,
	})
	fmt.Fprintln(out, renderDetails(stateDetails(state)))
	if runErr != nil {
		return errRunFailed
	}
	return nil
}

// reviewers picks the presenter and decider for the run. Without a terminal
// the run must be fully automatic.
func reviewers(in io.Reader, out io.Writer, opts generateOptions) (review.Presenter, review.Decider, error) {
	target := strings.ToLower(strings.TrimSpace(opts.target))
	if opts.autopilot && target == "" {
		target = publish.TargetLocal
	}
	needsConsole := !opts.autopilot || target == ""
	if needsConsole && !review.Interactive(in) {
		return nil, nil, fmt.Errorf("%w: review needs an interactive terminal; pass --autopilot and --target to run unattended",
			services.ErrConfiguration)
	}

	var console *review.Console
	if needsConsole {
		console = review.NewConsole(in, out)
	}

	var presenter review.Presenter = review.Autopilot{}
	if !opts.autopilot {
		presenter = console
	}
	var decider review.Decider = review.Preset{Target: target}
	if target == "" {
		decider = console
	}
	return presenter, decider, nil
}

func buildCollaborators(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (workflow.Collaborators, error) {
	commits, err := github.New(github.Config{
		Token:        cfg.GitHub.Token,
		BaseURL:      cfg.GitHub.BaseURL,
		Timeout:      time.Duration(cfg.GitHub.TimeoutSeconds) * time.Second,
		CacheSize:    cfg.GitHub.CacheSize,
		MaxDiffChars: cfg.GitHub.MaxDiffChars,
		Logger:       logger,
	})
	if err != nil {
		return workflow.Collaborators{}, err
	}
	if !commits.Authenticated() {
		logging.WarnWithContext(logger, "github token not configured; unauthenticated rate limits apply", "github_unauthenticated",
			logging.String(logging.FieldErrorHint, "set github.token or GITHUB_TOKEN"),
		)
	}

	completer, err := llm.New(cmd.Context(), llm.Config{
		Provider:       cfg.LLM.Provider,
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		Referer:        "https://github.com/domini04/bluestar",
		Title:          "bluestar",
	})
	if err != nil {
		return workflow.Collaborators{}, err
	}

	publishers, err := buildPublishers(cfg, logger)
	if err != nil {
		return workflow.Collaborators{}, err
	}
	local, err := publish.NewLocal(publish.LocalConfig{
		Dir:    cfg.Paths.OutputDir,
		Format: cfg.Local.Format,
		Logger: logger,
	})
	if err != nil {
		return workflow.Collaborators{}, err
	}

	return workflow.Collaborators{
		Commits:    commits,
		Inference:  infer.New(completer, infer.WithLogger(logger), infer.WithAuthor(cfg.Workflow.Author)),
		Publishers: publishers,
		Saver:      local,
	}, nil
}

func buildPublishers(cfg *config.Config, logger *slog.Logger) ([]publish.Publisher, error) {
	var publishers []publish.Publisher
	if cfg.GhostEnabled() {
		ghost, err := publish.NewGhost(publish.GhostConfig{
			APIURL:      cfg.Ghost.APIURL,
			AdminAPIKey: cfg.Ghost.AdminAPIKey,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, ghost)
	}
	if cfg.NotionEnabled() {
		notion, err := publish.NewNotion(publish.NotionConfig{
			Token:      cfg.Notion.Token,
			DatabaseID: cfg.Notion.DatabaseID,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, notion)
	}
	return publishers, nil
}

func stateDetails(s workflow.State) [][2]string {
	pairs := [][2]string{
		{"Run", s.RunID},
		{"Commit", s.Subject.String()},
	}
	if s.Draft != nil {
		pairs = append(pairs, [2]string{"Title", s.Draft.Title})
	}
	pairs = append(pairs,
		[2]string{"Outcome", string(s.Outcome())},
		[2]string{"Iterations", strconv.Itoa(s.IterationCount) + "/" + strconv.Itoa(s.MaxIterations)},
		[2]string{"Enhanced", yesNo(s.EnhancementAttempted)},
	)
	if location := s.Result.Location(); location != "" {
		pairs = append(pairs, [2]string{"Location", location})
	}
	if s.Failed {
		pairs = append(pairs, [2]string{"Failed stage", string(s.FailedStage)})
	}
	for i, msg := range s.Errors {
		label := ""
		if i == 0 {
			label = "Errors"
		}
		pairs = append(pairs, [2]string{label, msg})
	}
	return pairs
}
