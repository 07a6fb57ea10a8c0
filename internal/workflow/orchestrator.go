package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bluestar/internal/logging"
	"bluestar/internal/services"
)

// DefaultCompletenessThreshold is used when no threshold is configured.
const DefaultCompletenessThreshold = 0.6

// Orchestrator drives runs through the stages. One Orchestrator may serve
// concurrent runs; each run owns its State.
type Orchestrator struct {
	stages   *stageRunner
	logger   *slog.Logger
	tracer   Tracer
	notifier Notifier
	now      func() time.Time
	newRunID func() string
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer records every run and stage execution.
func WithTracer(tracer Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

// WithNotifier announces finished runs.
func WithNotifier(notifier Notifier) Option {
	return func(o *Orchestrator) { o.notifier = notifier }
}

// WithStageTimeout bounds every non-interactive collaborator call.
func WithStageTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) { o.stages.timeout = timeout }
}

// WithCompletenessThreshold sets the analysis completeness below which
// unclassified feedback is treated as a context gap.
func WithCompletenessThreshold(threshold float64) Option {
	return func(o *Orchestrator) { o.stages.threshold = threshold }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRunIDs overrides run identifier generation.
func WithRunIDs(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newRunID = next
		}
	}
}

// New builds an Orchestrator. The commit source and inference collaborators
// are required.
func New(collab Collaborators, opts ...Option) (*Orchestrator, error) {
	if collab.Commits == nil {
		return nil, fmt.Errorf("%w: workflow requires a commit source", services.ErrConfiguration)
	}
	if collab.Inference == nil {
		return nil, fmt.Errorf("%w: workflow requires an inference engine", services.ErrConfiguration)
	}
	o := &Orchestrator{
		stages: &stageRunner{
			collab:    collab,
			threshold: DefaultCompletenessThreshold,
		},
		logger:   logging.NewNop(),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "workflow")
	o.stages.logger = o.logger
	o.stages.now = o.now
	return o, nil
}

// Run executes one run to a terminal state. The returned error is non-nil
// exactly when the run ended in failure; the state is returned either way so
// partial artifacts stay inspectable.
func (o *Orchestrator) Run(ctx context.Context, in Input) (State, error) {
	s := NewState(in)
	s.RunID = o.newRunID()
	ctx = services.WithRunID(ctx, s.RunID)
	ctx = services.WithSubject(ctx, in.Repo, in.SHA)
	logger := logging.WithContext(ctx, o.logger)

	started := o.now()
	o.traceStart(ctx, logger, RunInfo{
		ID:            s.RunID,
		Repo:          in.Repo,
		SHA:           in.SHA,
		Guidance:      in.Guidance,
		MaxIterations: in.MaxIterations,
		Started:       started,
	})
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("max_iterations", in.MaxIterations),
		logging.Bool("guidance", in.Guidance != ""),
		logging.String("preset_target", in.Target),
	)

	limit := MaxTransitions(in.MaxIterations)
	executed := 0
	for !s.Terminal {
		decision := Route(s)
		logger.Debug("route decided", logging.Args(logging.DecisionAttrs("route", string(decision.Next), decision.Reason)...)...)

		if decision.Next == StageDone {
			s = s.fail(s.Last, services.Wrap(services.ErrExternalTool, string(s.Last), "route", decision.Reason, nil))
			break
		}
		if executed >= limit {
			s = s.fail(decision.Next, services.Wrap(services.ErrExternalTool, string(decision.Next), "route",
				fmt.Sprintf("run exceeded %d stage executions", limit), nil))
			break
		}
		if err := ctx.Err(); err != nil {
			s = s.fail(decision.Next, stageError(decision.Next, "run", "cancelled before stage", err))
			break
		}
		if decision.IncrementIteration {
			s.IterationCount++
		}

		executed++
		s = o.execute(ctx, executed, decision, s)

		if s.Last == StageValidateInput {
			ctx = services.WithSubject(ctx, s.Subject.Repo, s.Subject.SHA)
			logger = logging.WithContext(ctx, o.logger)
		}
	}

	summary := Summarize(s, started, o.now(), executed)
	o.logFinish(logger, s, summary)
	o.traceFinish(ctx, logger, summary)
	o.notify(ctx, logger, summary)
	return s, s.Err()
}

func (o *Orchestrator) execute(ctx context.Context, seq int, decision Decision, s State) State {
	stage := decision.Next
	stageCtx := services.WithStage(ctx, string(stage))
	logger := logging.WithContext(stageCtx, o.logger)

	start := o.now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("seq", seq),
		logging.Int("iteration", s.IterationCount),
	)

	var (
		next State
		err  error
	)
	if fn, ok := o.stages.lookup(stage); ok {
		next, err = fn(stageCtx, s)
	} else {
		err = services.Wrap(services.ErrExternalTool, string(stage), "lookup", "no handler for stage", nil)
	}
	duration := o.now().Sub(start)
	transition := Transition{Seq: seq, Stage: stage, Started: start, Duration: duration}

	if err != nil {
		s = s.fail(stage, err)
		transition.Outcome = OutcomeFail
		transition.Detail = err.Error()
		hint := services.Remediation(s.ErrorKind)
		if hint == "" {
			hint = "check logs for details"
		}
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.Alert("stage_failure"),
			logging.String("error_kind", string(s.ErrorKind)),
			logging.String(logging.FieldErrorHint, hint),
			logging.Duration("stage_duration", duration),
			logging.Error(err),
		)
		o.traceStage(ctx, logger, s.RunID, transition)
		return s
	}

	next.Last = stage
	transition.Outcome = OutcomeContinue
	transition.Detail = decision.Reason
	attrs := append([]logging.Attr{
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", duration),
	}, stageAttrs(stage, next)...)
	logger.Info("stage completed", logging.Args(attrs...)...)
	o.traceStage(ctx, logger, next.RunID, transition)
	return next
}

// stageAttrs picks the fields worth logging for what a stage produced.
func stageAttrs(stage StageID, s State) []logging.Attr {
	switch stage {
	case StageFetchCommit:
		if s.Facts == nil {
			return nil
		}
		return []logging.Attr{
			logging.Int("files", len(s.Facts.Files)),
			logging.Bool("diff_truncated", s.Facts.DiffTruncated),
			logging.Bool("project_context", s.Facts.Project != nil),
		}
	case StageAnalyzeCommit:
		if s.Interpretation == nil {
			return nil
		}
		return []logging.Attr{
			logging.String("category", string(s.Interpretation.Category)),
			logging.Float64("completeness", s.Interpretation.Completeness),
		}
	case StageSynthesizeContent:
		if s.Draft == nil {
			return nil
		}
		return []logging.Attr{
			logging.String("title", s.Draft.Title),
			logging.Int("words", s.Draft.WordCount()),
		}
	case StageCollectFeedback:
		if s.Review == nil {
			return nil
		}
		return []logging.Attr{
			logging.Bool("approved", s.Review.Approved),
			logging.String("feedback_class", string(s.Review.Class)),
		}
	case StageEnhanceContext:
		if s.Facts == nil {
			return nil
		}
		return []logging.Attr{logging.Any("subsets", s.Facts.Extra.Fetched)}
	case StageDecidePublishTarget:
		return []logging.Attr{
			logging.String("target", s.PublishTarget),
			logging.String("disposition", string(s.Disposition)),
		}
	case StagePublish, StageSave:
		return []logging.Attr{logging.String("location", s.Result.Location())}
	default:
		return nil
	}
}

func (o *Orchestrator) logFinish(logger *slog.Logger, s State, summary Summary) {
	if s.Failed {
		logging.ErrorWithContext(logger, "run failed", "run_failed",
			logging.String("failed_stage", string(s.FailedStage)),
			logging.String("error_kind", string(s.ErrorKind)),
			logging.Int("errors", len(s.Errors)),
			logging.Duration("run_duration", summary.Finished.Sub(summary.Started)),
		)
		return
	}
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("disposition", string(summary.Disposition)),
		logging.String("location", summary.Location),
		logging.Int("iterations", summary.Iterations),
		logging.Bool("enhanced", summary.Enhanced),
		logging.Int("soft_errors", len(summary.Errors)),
		logging.Duration("run_duration", summary.Finished.Sub(summary.Started)),
	)
}

func (o *Orchestrator) traceStart(ctx context.Context, logger *slog.Logger, run RunInfo) {
	if o.tracer == nil {
		return
	}
	if err := o.tracer.RunStarted(context.WithoutCancel(ctx), run); err != nil {
		warnTrace(logger, err)
	}
}

func (o *Orchestrator) traceStage(ctx context.Context, logger *slog.Logger, runID string, t Transition) {
	if o.tracer == nil {
		return
	}
	if err := o.tracer.StageFinished(context.WithoutCancel(ctx), runID, t); err != nil {
		warnTrace(logger, err)
	}
}

func (o *Orchestrator) traceFinish(ctx context.Context, logger *slog.Logger, summary Summary) {
	if o.tracer == nil {
		return
	}
	if err := o.tracer.RunFinished(context.WithoutCancel(ctx), summary); err != nil {
		warnTrace(logger, err)
	}
}

func warnTrace(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "run trace write failed", "trace_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the state directory is writable"),
		logging.String(logging.FieldImpact, "run history is incomplete"),
	)
}

func (o *Orchestrator) notify(ctx context.Context, logger *slog.Logger, summary Summary) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.NotifyRun(context.WithoutCancel(ctx), summary); err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("run notification failed", logging.Error(err))
	}
}
