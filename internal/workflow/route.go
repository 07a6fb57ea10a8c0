package workflow

import (
	"fmt"

	"bluestar/internal/infer"
)

// Decision is the routing result for one state.
type Decision struct {
	Next StageID
	// IncrementIteration asks the Orchestrator to count a completed refinement
	// round before running Next.
	IncrementIteration bool
	Reason             string
}

// Route picks the stage that follows s.Last. It reads only s, so the same
// state always yields the same decision.
func Route(s State) Decision {
	if s.Terminal {
		return Decision{Next: StageDone, Reason: "run is terminal"}
	}
	switch s.Last {
	case "":
		return Decision{Next: StageValidateInput, Reason: "start"}
	case StageValidateInput:
		return Decision{Next: StageFetchCommit, Reason: "input valid"}
	case StageFetchCommit:
		return Decision{Next: StageAnalyzeCommit, Reason: "facts retrieved"}
	case StageAnalyzeCommit:
		return Decision{Next: StageSynthesizeContent, Reason: "analysis ready"}
	case StageSynthesizeContent:
		return Decision{Next: StageCollectFeedback, Reason: "draft ready"}
	case StageEnhanceContext:
		return Decision{Next: StageAnalyzeCommit, Reason: "context enhanced"}
	case StageCollectFeedback:
		return routeFeedback(s)
	case StageDecidePublishTarget:
		return routeDisposition(s)
	case StagePublish, StageSave, StageDiscard:
		return Decision{Next: StageDone, Reason: "terminal stage complete"}
	default:
		return Decision{Next: StageDone, Reason: fmt.Sprintf("unknown stage %q", s.Last)}
	}
}

// routeFeedback checks the iteration cap before enhancement so a reviewer who
// is still unhappy on the last allowed round gets the best draft so far.
func routeFeedback(s State) Decision {
	switch {
	case s.Review == nil || s.Review.Approved:
		return Decision{Next: StageDecidePublishTarget, Reason: "approved"}
	case s.IterationCount >= s.MaxIterations:
		return Decision{
			Next:   StageDecidePublishTarget,
			Reason: fmt.Sprintf("iteration limit reached (%d/%d)", s.IterationCount, s.MaxIterations),
		}
	case s.Review.Class == infer.FeedbackContextGap && !s.EnhancementAttempted:
		return Decision{Next: StageEnhanceContext, Reason: "feedback points to missing context"}
	default:
		return Decision{Next: StageSynthesizeContent, IncrementIteration: true, Reason: "revise draft"}
	}
}

func routeDisposition(s State) Decision {
	switch s.Disposition {
	case DispositionPublish:
		return Decision{Next: StagePublish, Reason: "target " + s.PublishTarget}
	case DispositionSave:
		return Decision{Next: StageSave, Reason: "target " + s.PublishTarget}
	case DispositionDiscard:
		return Decision{Next: StageDiscard, Reason: "discard requested"}
	default:
		return Decision{Next: StageDone, Reason: "no disposition chosen"}
	}
}

// MaxTransitions is the most stage executions a run with the given iteration
// budget can need: the five stages before the first review, two per
// refinement round, the enhancement detour with its review, and the two
// stages of the publish decision.
func MaxTransitions(maxIterations int) int {
	if maxIterations < 0 {
		maxIterations = 0
	}
	return 2*maxIterations + 11
}
