package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bluestar/internal/commit"
	"bluestar/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded workflow runs",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsPruneCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunStore(func(store *runstore.Store) error {
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						run.ID,
						run.Repo + "@" + shortSHA(run.SHA),
						run.Status,
						strconv.Itoa(run.Iterations) + "/" + strconv.Itoa(run.MaxIterations),
						formatStarted(run.StartedAt),
						truncate(run.Title, 48),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Commit", "Status", "Iter", "Started", "Title"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum runs to show (0 for all)")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its stage transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunStore(func(store *runstore.Store) error {
				run, transitions, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderDetails(runDetails(*run)))
				if len(transitions) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(transitions))
				for _, t := range transitions {
					rows = append(rows, []string{
						strconv.Itoa(t.Seq),
						string(t.Stage),
						t.Outcome,
						t.Duration.Round(time.Millisecond).String(),
						t.Detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Stage", "Outcome", "Duration", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return ctx.withRunStore(func(store *runstore.Store) error {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age beyond which runs are deleted")
	return cmd
}

func runDetails(run runstore.Run) [][2]string {
	pairs := [][2]string{
		{"Run", run.ID},
		{"Commit", run.Repo + "@" + run.SHA},
		{"Status", run.Status},
	}
	if run.Title != "" {
		pairs = append(pairs, [2]string{"Title", run.Title})
	}
	if run.Guidance != "" {
		pairs = append(pairs, [2]string{"Guidance", run.Guidance})
	}
	pairs = append(pairs,
		[2]string{"Iterations", strconv.Itoa(run.Iterations) + "/" + strconv.Itoa(run.MaxIterations)},
		[2]string{"Enhanced", yesNo(run.Enhanced)},
		[2]string{"Started", formatStarted(run.StartedAt)},
	)
	if d := run.Duration(); d > 0 {
		pairs = append(pairs, [2]string{"Duration", d.Round(time.Millisecond).String()})
	}
	if run.Location != "" {
		pairs = append(pairs, [2]string{"Location", run.Location})
	}
	if run.FailedStage != "" {
		pairs = append(pairs, [2]string{"Failed stage", run.FailedStage + " (" + run.ErrorKind + ")"})
	}
	for i, msg := range run.Errors {
		label := ""
		if i == 0 {
			label = "Errors"
		}
		pairs = append(pairs, [2]string{label, msg})
	}
	return pairs
}

func shortSHA(sha string) string {
	return commit.Subject{SHA: sha}.ShortSHA()
}

func formatStarted(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
