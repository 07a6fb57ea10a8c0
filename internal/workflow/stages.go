package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"bluestar/internal/commit"
	"bluestar/internal/infer"
	"bluestar/internal/logging"
	"bluestar/internal/publish"
	"bluestar/internal/review"
	"bluestar/internal/services"
)

// stageFunc transforms a copy of the run state. A returned error ends the run
// and the returned state is discarded.
type stageFunc func(ctx context.Context, s State) (State, error)

type stageRunner struct {
	collab    Collaborators
	threshold float64
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func (r *stageRunner) lookup(id StageID) (stageFunc, bool) {
	switch id {
	case StageValidateInput:
		return r.validateInput, true
	case StageFetchCommit:
		return r.fetchCommit, true
	case StageAnalyzeCommit:
		return r.analyzeCommit, true
	case StageSynthesizeContent:
		return r.synthesizeContent, true
	case StageCollectFeedback:
		return r.collectFeedback, true
	case StageEnhanceContext:
		return r.enhanceContext, true
	case StageDecidePublishTarget:
		return r.decidePublishTarget, true
	case StagePublish:
		return r.publish, true
	case StageSave:
		return r.save, true
	case StageDiscard:
		return r.discard, true
	default:
		return nil, false
	}
}

// callContext bounds one collaborator call. Review prompts are not bounded.
func (r *stageRunner) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func stageError(stage StageID, operation, message string, err error) error {
	marker := services.MarkerOf(err)
	switch {
	case marker != nil:
	case errors.Is(err, context.DeadlineExceeded):
		marker = services.ErrTimeout
	default:
		marker = services.ErrExternalTool
	}
	return services.Wrap(marker, string(stage), operation, message, err)
}

func missing(stage StageID, what string) error {
	return services.Wrap(services.ErrExternalTool, string(stage), "precondition", what+" not available", nil)
}

func (r *stageRunner) validateInput(_ context.Context, s State) (State, error) {
	subject, err := commit.ParseSubject(s.Subject.Repo, s.Subject.SHA)
	if err != nil {
		return s, services.Wrap(services.ErrInvalidInput, string(StageValidateInput), "parse subject", "", err)
	}
	if s.MaxIterations < 0 {
		return s, services.Wrap(services.ErrInvalidInput, string(StageValidateInput), "check iterations",
			fmt.Sprintf("max iterations must be zero or more (got %d)", s.MaxIterations), nil)
	}
	s.Target = strings.ToLower(strings.TrimSpace(s.Target))
	if s.Target != "" {
		if _, ok := DispositionForTarget(s.Target); !ok {
			return s, services.Wrap(services.ErrInvalidInput, string(StageValidateInput), "check target",
				fmt.Sprintf("unknown target %q", s.Target), nil)
		}
	}
	s.Subject = subject
	return s, nil
}

func (r *stageRunner) fetchCommit(ctx context.Context, s State) (State, error) {
	if r.collab.Commits == nil {
		return s, services.Wrap(services.ErrConfiguration, string(StageFetchCommit), "fetch commit", "commit source not configured", nil)
	}
	callCtx, cancel := r.callContext(ctx)
	facts, err := r.collab.Commits.FetchCommit(callCtx, s.Subject)
	cancel()
	if err != nil {
		return s, stageError(StageFetchCommit, "fetch commit", s.Subject.String(), err)
	}

	callCtx, cancel = r.callContext(ctx)
	project, err := r.collab.Commits.FetchProjectContext(callCtx, s.Subject, facts.SHA)
	cancel()
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "project context unavailable", "project_context_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check repository access for the configured token"),
			logging.String(logging.FieldImpact, "article is written without repository background"),
		)
		s = s.withError("Project context unavailable: " + err.Error())
	} else {
		facts.Project = project
	}
	s.Facts = &facts
	return s, nil
}

func (r *stageRunner) analyzeCommit(ctx context.Context, s State) (State, error) {
	if s.Facts == nil {
		return s, missing(StageAnalyzeCommit, "commit facts")
	}
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	interp, err := r.collab.Inference.Analyze(callCtx, *s.Facts, s.Guidance)
	if err != nil {
		return s, stageError(StageAnalyzeCommit, "analyze", s.Subject.String(), err)
	}
	s.Interpretation = &interp
	return s, nil
}

func (r *stageRunner) synthesizeContent(ctx context.Context, s State) (State, error) {
	if s.Facts == nil || s.Interpretation == nil {
		return s, missing(StageSynthesizeContent, "analysis")
	}
	in := infer.SynthesisInput{
		Facts:          *s.Facts,
		Interpretation: *s.Interpretation,
		Guidance:       s.Guidance,
	}
	if s.Review != nil && !s.Review.Approved {
		in.Feedback = s.Review.Feedback
		in.Previous = s.Draft
	}
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	post, err := r.collab.Inference.Synthesize(callCtx, in)
	if err != nil {
		return s, stageError(StageSynthesizeContent, "synthesize", s.Subject.String(), err)
	}
	s.Draft = &post
	return s, nil
}

func (r *stageRunner) collectFeedback(ctx context.Context, s State) (State, error) {
	if s.Draft == nil || s.Interpretation == nil {
		return s, missing(StageCollectFeedback, "draft")
	}
	presenter := r.collab.Presenter
	if presenter == nil {
		presenter = review.Autopilot{}
	}
	outcome, err := presenter.PresentAndCollect(ctx, review.Draft{
		Subject:        s.Subject,
		Post:           *s.Draft,
		Interpretation: *s.Interpretation,
		Iteration:      s.IterationCount,
		MaxIterations:  s.MaxIterations,
	})
	if err != nil {
		return s, stageError(StageCollectFeedback, "collect feedback", "", err)
	}
	outcome = outcome.Normalize()
	verdict := &Review{Approved: outcome.Approved, Feedback: outcome.Feedback}

	// Classification only matters when routing could still take the detour.
	if !verdict.Approved && s.IterationCount < s.MaxIterations && !s.EnhancementAttempted {
		callCtx, cancel := r.callContext(ctx)
		class, source, err := classifyFeedback(callCtx, r.collab.Inference, verdict.Feedback, s.Interpretation, r.threshold)
		cancel()
		if err != nil {
			// Unclassified feedback still gets a regular refinement round.
			s = s.withError(services.UserMessage(stageError(StageCollectFeedback, "classify feedback", "treated as stylistic", err)))
			class = infer.FeedbackStylistic
		}
		verdict.Class = class
		verdict.ClassSource = source
		logging.WithContext(ctx, r.logger).Debug("feedback classified",
			logging.String("feedback_class", string(class)),
			logging.String("class_source", source),
		)
	}
	s.Review = verdict
	return s, nil
}

func (r *stageRunner) enhanceContext(ctx context.Context, s State) (State, error) {
	if s.Facts == nil || s.Interpretation == nil {
		return s, missing(StageEnhanceContext, "analysis")
	}
	feedback := ""
	if s.Review != nil {
		feedback = s.Review.Feedback
	}
	s.EnhancementAttempted = true
	logger := logging.WithContext(ctx, r.logger)

	callCtx, cancel := r.callContext(ctx)
	subsets, err := r.collab.Inference.AssessContext(callCtx, *s.Facts, *s.Interpretation, feedback)
	cancel()
	if err != nil {
		return s, stageError(StageEnhanceContext, "assess context", "", err)
	}
	if len(subsets) == 0 {
		logger.Info("no additional context selected")
		return s, nil
	}

	callCtx, cancel = r.callContext(ctx)
	extra, err := r.collab.Commits.FetchSubsets(callCtx, s.Subject, *s.Facts, subsets)
	cancel()
	if err != nil {
		logging.WarnWithContext(logger, "additional context partially unavailable", "enhancement_partial",
			logging.Error(err),
			logging.Int("fetched", len(extra.Fetched)),
			logging.Int("failed", len(extra.Failed)),
			logging.String(logging.FieldErrorHint, "check repository access for the configured token"),
			logging.String(logging.FieldImpact, "draft is regenerated with the context that was retrieved"),
		)
		s = s.withError("Additional context unavailable: " + err.Error())
	}
	facts := *s.Facts
	facts.Extra = facts.Extra.Merge(extra)
	s.Facts = &facts
	logger.Info("context enhanced",
		logging.Any("requested", subsets),
		logging.Any("fetched", extra.Fetched),
	)
	return s, nil
}

func (r *stageRunner) decidePublishTarget(ctx context.Context, s State) (State, error) {
	options := r.collab.Targets()
	decider := r.collab.Decider
	if s.Target != "" {
		decider = review.Preset{Target: s.Target}
	}
	if decider == nil {
		return s, services.Wrap(services.ErrConfiguration, string(StageDecidePublishTarget), "decide", "no target decider configured", nil)
	}
	target, err := decider.Decide(ctx, options)
	if err != nil {
		return s, stageError(StageDecidePublishTarget, "decide", "", err)
	}
	disposition, ok := DispositionForTarget(target)
	if !ok || !slices.Contains(options, target) {
		return s, services.Wrap(services.ErrConfiguration, string(StageDecidePublishTarget), "decide",
			fmt.Sprintf("target %q is not available (configured: %s)", target, strings.Join(options, ", ")), nil)
	}
	s.PublishTarget = target
	s.Disposition = disposition
	return s, nil
}

func (r *stageRunner) metadata(s State) publish.Metadata {
	meta := publish.Metadata{Subject: s.Subject, SHA: s.Subject.SHA, When: r.now()}
	if s.Facts != nil && s.Facts.SHA != "" {
		meta.SHA = s.Facts.SHA
	}
	if s.Interpretation != nil {
		meta.Category = s.Interpretation.Category
	}
	return meta
}

func (r *stageRunner) publish(ctx context.Context, s State) (State, error) {
	if s.Draft == nil {
		return s, missing(StagePublish, "draft")
	}
	target, ok := r.collab.publisher(s.PublishTarget)
	if !ok {
		return s, services.Wrap(services.ErrConfiguration, string(StagePublish), "publish",
			fmt.Sprintf("target %q is not configured", s.PublishTarget), nil)
	}
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	result, err := target.Publish(callCtx, *s.Draft, r.metadata(s))
	if err != nil {
		return s, stageError(StagePublish, "publish", s.PublishTarget, err)
	}
	s.Result = result
	s.Terminal = true
	return s, nil
}

func (r *stageRunner) save(ctx context.Context, s State) (State, error) {
	if s.Draft == nil {
		return s, missing(StageSave, "draft")
	}
	if r.collab.Saver == nil {
		return s, services.Wrap(services.ErrConfiguration, string(StageSave), "save", "local output is not configured", nil)
	}
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	result, err := r.collab.Saver.Save(callCtx, *s.Draft, r.metadata(s))
	if err != nil {
		return s, stageError(StageSave, "save", "", err)
	}
	s.Result = result
	s.Terminal = true
	return s, nil
}

func (r *stageRunner) discard(ctx context.Context, s State) (State, error) {
	logging.WithContext(ctx, r.logger).Info("draft discarded")
	s.Result = publish.Result{Target: publish.TargetDiscard}
	s.Terminal = true
	return s, nil
}
