package workflow

import (
	"context"
	"slices"
	"time"

	"bluestar/internal/services"
)

// Transition outcomes.
const (
	OutcomeContinue = "continue"
	OutcomeFail     = "fail"
)

// RunInfo describes a run when it starts.
type RunInfo struct {
	ID            string
	Repo          string
	SHA           string
	Guidance      string
	MaxIterations int
	Started       time.Time
}

// Transition is one stage execution.
type Transition struct {
	Seq     int
	Stage   StageID
	Outcome string
	// Detail is the routing reason on success and the error text on failure.
	Detail   string
	Started  time.Time
	Duration time.Duration
}

// Summary is the reportable end state of a run.
type Summary struct {
	RunID         string
	Repo          string
	SHA           string
	Title         string
	Disposition   Disposition
	Target        string
	Location      string
	Iterations    int
	MaxIterations int
	Enhanced      bool
	FailedStage   StageID
	ErrorKind     services.Kind
	Errors        []string
	Transitions   int
	Started       time.Time
	Finished      time.Time
}

// Summarize reports the state of a finished run.
func Summarize(s State, started, finished time.Time, transitions int) Summary {
	summary := Summary{
		RunID:         s.RunID,
		Repo:          s.Subject.Repo,
		SHA:           s.Subject.SHA,
		Disposition:   s.Outcome(),
		Target:        s.PublishTarget,
		Location:      s.Result.Location(),
		Iterations:    s.IterationCount,
		MaxIterations: s.MaxIterations,
		Enhanced:      s.EnhancementAttempted,
		Errors:        slices.Clone(s.Errors),
		Transitions:   transitions,
		Started:       started,
		Finished:      finished,
	}
	if s.Facts != nil && s.Facts.SHA != "" {
		summary.SHA = s.Facts.SHA
	}
	if s.Draft != nil {
		summary.Title = s.Draft.Title
	}
	if s.Failed {
		summary.FailedStage = s.FailedStage
		summary.ErrorKind = s.ErrorKind
	}
	return summary
}

// Tracer receives the audit trail of a run. Errors are logged and never
// affect the run.
type Tracer interface {
	RunStarted(ctx context.Context, run RunInfo) error
	StageFinished(ctx context.Context, runID string, t Transition) error
	RunFinished(ctx context.Context, summary Summary) error
}

// Notifier announces finished runs.
type Notifier interface {
	NotifyRun(ctx context.Context, summary Summary) error
}
