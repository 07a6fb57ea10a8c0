package workflow

import (
	"errors"
	"slices"

	"bluestar/internal/article"
	"bluestar/internal/commit"
	"bluestar/internal/infer"
	"bluestar/internal/publish"
	"bluestar/internal/services"
)

// StageID names a stage of the run.
type StageID string

const (
	StageValidateInput       StageID = "validate_input"
	StageFetchCommit         StageID = "fetch_commit"
	StageAnalyzeCommit       StageID = "analyze_commit"
	StageSynthesizeContent   StageID = "synthesize_content"
	StageCollectFeedback     StageID = "collect_feedback"
	StageEnhanceContext      StageID = "enhance_context"
	StageDecidePublishTarget StageID = "decide_publish_target"
	StagePublish             StageID = "publish"
	StageSave                StageID = "save"
	StageDiscard             StageID = "discard"
	// StageDone is returned by Route once the run is terminal.
	StageDone StageID = "done"
)

// Stages returns every executable stage in pipeline order.
func Stages() []StageID {
	return []StageID{
		StageValidateInput,
		StageFetchCommit,
		StageAnalyzeCommit,
		StageSynthesizeContent,
		StageCollectFeedback,
		StageEnhanceContext,
		StageDecidePublishTarget,
		StagePublish,
		StageSave,
		StageDiscard,
	}
}

// Terminal reports whether the stage ends the run when it succeeds.
func (s StageID) Terminal() bool {
	switch s {
	case StagePublish, StageSave, StageDiscard:
		return true
	default:
		return false
	}
}

// Disposition is the final outcome chosen for the draft.
type Disposition string

const (
	DispositionUndecided Disposition = "undecided"
	DispositionPublish   Disposition = "publish"
	DispositionSave      Disposition = "save"
	DispositionDiscard   Disposition = "discard"
	// DispositionError is only reported in summaries; State keeps the chosen
	// disposition and sets Failed instead.
	DispositionError Disposition = "error"
)

// DispositionForTarget maps a publish target name onto a disposition.
func DispositionForTarget(target string) (Disposition, bool) {
	switch target {
	case publish.TargetGhost, publish.TargetNotion:
		return DispositionPublish, true
	case publish.TargetLocal:
		return DispositionSave, true
	case publish.TargetDiscard:
		return DispositionDiscard, true
	default:
		return DispositionUndecided, false
	}
}

// Input is what a caller supplies to start a run.
type Input struct {
	Repo     string
	SHA      string
	Guidance string
	// MaxIterations bounds the refinement loop. Zero means a rejected first
	// draft goes straight to the publish decision.
	MaxIterations int
	// Target preselects the publish decision when set.
	Target string
}

// Review is the latest reviewer verdict plus the routing classification of
// its feedback. Class is empty unless the feedback needed classifying.
type Review struct {
	Approved bool
	Feedback string
	Class    infer.FeedbackClass
	// ClassSource records which tier decided Class (keyword, completeness, inference).
	ClassSource string
}

// State is the record threaded through every stage of one run.
type State struct {
	RunID    string
	Subject  commit.Subject
	Guidance string
	Target   string

	Facts          *commit.Facts
	Interpretation *commit.Interpretation
	Draft          *article.Post
	Review         *Review

	IterationCount       int
	MaxIterations        int
	EnhancementAttempted bool

	PublishTarget string
	Disposition   Disposition
	Result        publish.Result

	// Errors is append-only. Soft failures land here without ending the run.
	Errors   []string
	Terminal bool
	Failed   bool
	// FailedStage and ErrorKind describe the failure that ended the run.
	FailedStage StageID
	ErrorKind   services.Kind

	// Last is the most recently completed stage; empty before the first one.
	Last StageID

	err error
}

// NewState builds the initial state for a run.
func NewState(in Input) State {
	return State{
		Subject:       commit.Subject{Repo: in.Repo, SHA: in.SHA},
		Guidance:      in.Guidance,
		Target:        in.Target,
		MaxIterations: in.MaxIterations,
		Disposition:   DispositionUndecided,
	}
}

// Err returns the error that ended the run, or nil.
func (s State) Err() error {
	return s.err
}

// Approved reports whether the latest review approved the draft.
func (s State) Approved() bool {
	return s.Review != nil && s.Review.Approved
}

// Outcome is the disposition as reported to users, with failures shown as error.
func (s State) Outcome() Disposition {
	if s.Failed {
		return DispositionError
	}
	return s.Disposition
}

func (s State) withError(msg string) State {
	s.Errors = append(slices.Clip(s.Errors), msg)
	return s
}

func (s State) fail(stage StageID, err error) State {
	if err == nil {
		err = errors.New("stage failed without an error")
	}
	s = s.withError(services.UserMessage(err))
	s.Terminal = true
	s.Failed = true
	s.FailedStage = stage
	s.ErrorKind = services.KindOf(err)
	s.err = err
	return s
}
