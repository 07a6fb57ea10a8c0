package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"bluestar/internal/commit"
	"bluestar/internal/infer"
	"bluestar/internal/publish"
	"bluestar/internal/review"
	"bluestar/internal/services"
)

func TestRunAutopilotSavesWithoutIterating(t *testing.T) {
	h := newHarness()
	o, err := New(Collaborators{
		Commits:   h.commits,
		Inference: h.inference,
		Presenter: review.Autopilot{},
		Saver:     h.saver,
	}, WithTracer(h.tracer))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	state, err := o.Run(context.Background(), Input{Repo: testRepo, SHA: testSHA, MaxIterations: 3, Target: "local"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertStages(t, h.tracer.stages(),
		StageValidateInput, StageFetchCommit, StageAnalyzeCommit, StageSynthesizeContent,
		StageCollectFeedback, StageDecidePublishTarget, StageSave)
	if state.IterationCount != 0 || state.EnhancementAttempted {
		t.Fatalf("iterations=%d enhanced=%v, want 0/false", state.IterationCount, state.EnhancementAttempted)
	}
	if state.Disposition != DispositionSave || !state.Terminal || state.Failed {
		t.Fatalf("unexpected end state: disposition=%s terminal=%v failed=%v", state.Disposition, state.Terminal, state.Failed)
	}
	if state.Result.Path == "" {
		t.Fatalf("expected saved path in result")
	}
	if h.saver.calls != 1 {
		t.Fatalf("saver calls = %d, want 1", h.saver.calls)
	}
}

func TestRunPublishesToPresetTarget(t *testing.T) {
	h := newHarness()
	state, err := h.run(t, Input{MaxIterations: 3, Target: "Ghost"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Disposition != DispositionPublish || state.PublishTarget != publish.TargetGhost {
		t.Fatalf("disposition=%s target=%s", state.Disposition, state.PublishTarget)
	}
	if h.ghost.calls != 1 || h.saver.calls != 0 {
		t.Fatalf("ghost calls=%d saver calls=%d", h.ghost.calls, h.saver.calls)
	}
	if !strings.HasPrefix(state.Result.URL, "https://blog.example.com/") {
		t.Fatalf("unexpected url %q", state.Result.URL)
	}
	if state.Subject.SHA != testSHA || state.Facts.SHA != fullSHA {
		t.Fatalf("subject sha=%s facts sha=%s", state.Subject.SHA, state.Facts.SHA)
	}
}

func TestStylisticFeedbackRevisesWithoutEnhancement(t *testing.T) {
	h := newHarness()
	h.presenter.outcomes = []review.Outcome{
		rejectWith("this is unclear, please simplify"),
		{Approved: true},
	}

	state, err := h.run(t, Input{MaxIterations: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertStages(t, h.tracer.stages(),
		StageValidateInput, StageFetchCommit, StageAnalyzeCommit, StageSynthesizeContent,
		StageCollectFeedback, StageSynthesizeContent, StageCollectFeedback,
		StageDecidePublishTarget, StageSave)
	if state.IterationCount != 1 {
		t.Fatalf("iterations = %d, want 1", state.IterationCount)
	}
	if state.EnhancementAttempted {
		t.Fatalf("enhancement should not run for stylistic feedback")
	}
	if h.inference.classifyCalls != 0 {
		t.Fatalf("keyword tier should settle this feedback, classify calls = %d", h.inference.classifyCalls)
	}
	if len(h.inference.synthInputs) != 2 {
		t.Fatalf("synthesize calls = %d, want 2", len(h.inference.synthInputs))
	}
	second := h.inference.synthInputs[1]
	if second.Feedback != "this is unclear, please simplify" {
		t.Fatalf("revision feedback = %q", second.Feedback)
	}
	if second.Previous == nil || second.Previous.Title != "Draft 1" {
		t.Fatalf("revision should see the previous draft, got %+v", second.Previous)
	}
	if h.inference.synthInputs[0].Feedback != "" {
		t.Fatalf("first synthesis should carry no feedback")
	}
}

func TestContextGapFeedbackEnhancesOnce(t *testing.T) {
	h := newHarness()
	h.commits.enhancement = commit.Enhancement{
		RelatedChanges: []commit.PullRequest{{Number: 42, Title: "Webhook retries"}},
		Fetched:        []commit.Subset{commit.SubsetRelatedChange},
	}
	gap := "I don't understand why this change was needed"
	h.presenter.outcomes = []review.Outcome{rejectWith(gap), rejectWith(gap), {Approved: true}}

	state, err := h.run(t, Input{MaxIterations: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertStages(t, h.tracer.stages(),
		StageValidateInput, StageFetchCommit, StageAnalyzeCommit, StageSynthesizeContent,
		StageCollectFeedback,
		StageEnhanceContext, StageAnalyzeCommit, StageSynthesizeContent, StageCollectFeedback,
		StageSynthesizeContent, StageCollectFeedback,
		StageDecidePublishTarget, StageSave)
	if !state.EnhancementAttempted {
		t.Fatalf("expected enhancement to run")
	}
	if state.IterationCount != 1 {
		t.Fatalf("iterations = %d, want 1 (detour must not count)", state.IterationCount)
	}
	if h.commits.subsetCalls != 1 || h.inference.assessCalls != 1 {
		t.Fatalf("subset fetches=%d assess calls=%d, want 1/1", h.commits.subsetCalls, h.inference.assessCalls)
	}
	if h.inference.analyzeCalls != 2 {
		t.Fatalf("analyze calls = %d, want 2", h.inference.analyzeCalls)
	}
	if len(state.Facts.Extra.RelatedChanges) != 1 {
		t.Fatalf("enhancement not merged into facts: %+v", state.Facts.Extra)
	}
	enhancedInput := h.inference.synthInputs[1]
	if len(enhancedInput.Facts.Extra.RelatedChanges) != 1 {
		t.Fatalf("regenerated draft should see enhanced facts")
	}
	if enhancedInput.Feedback != gap {
		t.Fatalf("regenerated draft should address the feedback, got %q", enhancedInput.Feedback)
	}
}

func TestIterationCapForcesDecision(t *testing.T) {
	h := newHarness()
	h.presenter.outcomes = []review.Outcome{rejectWith("make it shorter")}

	state, err := h.run(t, Input{MaxIterations: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertStages(t, h.tracer.stages(),
		StageValidateInput, StageFetchCommit, StageAnalyzeCommit, StageSynthesizeContent,
		StageCollectFeedback, StageSynthesizeContent, StageCollectFeedback,
		StageDecidePublishTarget, StageSave)
	if state.IterationCount != 1 {
		t.Fatalf("iterations = %d, want 1", state.IterationCount)
	}
	if state.Approved() {
		t.Fatalf("final review should still be a rejection")
	}
	if state.Disposition != DispositionSave {
		t.Fatalf("disposition = %s", state.Disposition)
	}
}

func TestZeroIterationsSkipsEnhancement(t *testing.T) {
	h := newHarness()
	h.presenter.outcomes = []review.Outcome{rejectWith("why was this needed?")}

	state, err := h.run(t, Input{MaxIterations: 0})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertStages(t, h.tracer.stages(),
		StageValidateInput, StageFetchCommit, StageAnalyzeCommit, StageSynthesizeContent,
		StageCollectFeedback, StageDecidePublishTarget, StageSave)
	if state.EnhancementAttempted || h.inference.assessCalls != 0 {
		t.Fatalf("enhancement must not run with zero iterations")
	}
	if state.Review.Class != "" {
		t.Fatalf("feedback should not be classified when no revision is possible, got %q", state.Review.Class)
	}
}

func TestFetchNotFoundHaltsRun(t *testing.T) {
	h := newHarness()
	h.commits.err = fmt.Errorf("github: get commit %s: %w", testSHA, services.ErrNotFound)

	state, err := h.run(t, Input{MaxIterations: 3})
	if err == nil {
		t.Fatalf("expected run error")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error should keep its marker: %v", err)
	}
	if !state.Terminal || !state.Failed {
		t.Fatalf("terminal=%v failed=%v", state.Terminal, state.Failed)
	}
	if state.Disposition != DispositionUndecided {
		t.Fatalf("disposition = %s, want undecided", state.Disposition)
	}
	if state.Outcome() != DispositionError {
		t.Fatalf("outcome = %s, want error", state.Outcome())
	}
	if state.ErrorKind != services.KindNotFound || state.FailedStage != StageFetchCommit {
		t.Fatalf("kind=%s stage=%s", state.ErrorKind, state.FailedStage)
	}
	if len(state.Errors) != 1 || !strings.Contains(state.Errors[0], "not found") {
		t.Fatalf("errors = %v", state.Errors)
	}
	assertStages(t, h.tracer.stages(), StageValidateInput, StageFetchCommit)
	if last := h.tracer.transitions[len(h.tracer.transitions)-1]; last.Outcome != OutcomeFail {
		t.Fatalf("last transition outcome = %s", last.Outcome)
	}
	if len(h.notifier.summaries) != 1 || h.notifier.summaries[0].Disposition != DispositionError {
		t.Fatalf("expected one failure notification, got %+v", h.notifier.summaries)
	}
}

func TestProjectContextFailureStillPublishes(t *testing.T) {
	h := newHarness()
	h.commits.projectErr = errors.New("github: get repo metadata: 502 bad gateway")

	state, err := h.run(t, Input{MaxIterations: 3, Target: publish.TargetGhost})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Disposition != DispositionPublish || h.ghost.calls != 1 {
		t.Fatalf("disposition=%s ghost calls=%d", state.Disposition, h.ghost.calls)
	}
	if state.Facts.Project != nil {
		t.Fatalf("project context should be absent")
	}
	if len(state.Errors) != 1 || !strings.HasPrefix(state.Errors[0], "Project context unavailable") {
		t.Fatalf("errors = %v", state.Errors)
	}
	if state.Failed {
		t.Fatalf("soft failure must not fail the run")
	}
}

func TestInvalidInputFailsBeforeFetch(t *testing.T) {
	cases := []Input{
		{Repo: "not a repo", SHA: testSHA},
		{Repo: testRepo, SHA: "xyz"},
		{Repo: testRepo, SHA: testSHA, MaxIterations: -1},
		{Repo: testRepo, SHA: testSHA, Target: "medium"},
	}
	for _, in := range cases {
		h := newHarness()
		state, err := h.orchestrator(t).Run(context.Background(), in)
		if !errors.Is(err, services.ErrInvalidInput) {
			t.Fatalf("%+v: expected invalid input, got %v", in, err)
		}
		if state.ErrorKind != services.KindInvalidInput {
			t.Fatalf("%+v: kind = %s", in, state.ErrorKind)
		}
		if h.commits.fetchCalls != 0 {
			t.Fatalf("%+v: fetch should not run", in)
		}
	}
}

func TestPublishFailureKeepsDraft(t *testing.T) {
	h := newHarness()
	h.ghost.err = fmt.Errorf("ghost: create post: %w", services.ErrAuth)

	state, err := h.run(t, Input{MaxIterations: 3, Target: publish.TargetGhost})
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if state.Draft == nil || state.Draft.Title != "Draft 1" {
		t.Fatalf("draft should remain inspectable, got %+v", state.Draft)
	}
	if state.Disposition != DispositionPublish || state.Outcome() != DispositionError {
		t.Fatalf("disposition=%s outcome=%s", state.Disposition, state.Outcome())
	}
	if state.ErrorKind != services.KindAuthInvalid {
		t.Fatalf("kind = %s", state.ErrorKind)
	}
	if !strings.Contains(state.Errors[len(state.Errors)-1], "credentials") {
		t.Fatalf("error should carry remediation: %v", state.Errors)
	}
}

func TestUnconfiguredTargetFails(t *testing.T) {
	h := newHarness()
	_, err := h.run(t, Input{MaxIterations: 3, Target: publish.TargetNotion})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if h.ghost.calls != 0 || h.saver.calls != 0 {
		t.Fatalf("no target should be called")
	}
}

func TestValidationErrorFromAnalysisIsTerminal(t *testing.T) {
	h := newHarness()
	h.inference.analyzeErr = fmt.Errorf("%w: infer analyze: missing summary", services.ErrValidation)

	state, err := h.run(t, Input{MaxIterations: 3})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if state.ErrorKind != services.KindValidation || state.Interpretation != nil {
		t.Fatalf("kind=%s interpretation=%+v", state.ErrorKind, state.Interpretation)
	}
	if h.inference.analyzeCalls != 1 {
		t.Fatalf("analysis must not be retried by the workflow, calls = %d", h.inference.analyzeCalls)
	}
}

func TestStageTimeoutIsTransient(t *testing.T) {
	h := newHarness()
	h.commits.block = true

	state, err := h.run(t, Input{MaxIterations: 1}, WithStageTimeout(20*time.Millisecond))
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if state.ErrorKind != services.KindTransient {
		t.Fatalf("kind = %s, want transient", state.ErrorKind)
	}
}

func TestPartialEnhancementFailureContinues(t *testing.T) {
	h := newHarness()
	h.inference.subsets = []commit.Subset{commit.SubsetRelatedChange, commit.SubsetIssueReference}
	h.commits.enhancement = commit.Enhancement{
		RelatedChanges: []commit.PullRequest{{Number: 7, Title: "Retry budget"}},
		Fetched:        []commit.Subset{commit.SubsetRelatedChange},
		Failed:         []commit.Subset{commit.SubsetIssueReference},
	}
	h.commits.subsetsErr = fmt.Errorf("issue_reference: %w", services.ErrNotFound)
	h.presenter.outcomes = []review.Outcome{rejectWith("what was the motivation?"), {Approved: true}}

	state, err := h.run(t, Input{MaxIterations: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !state.EnhancementAttempted {
		t.Fatalf("expected enhancement")
	}
	if len(state.Facts.Extra.Failed) != 1 || len(state.Facts.Extra.Fetched) != 1 {
		t.Fatalf("extra = %+v", state.Facts.Extra)
	}
	if len(state.Errors) != 1 || !strings.HasPrefix(state.Errors[0], "Additional context unavailable") {
		t.Fatalf("errors = %v", state.Errors)
	}
	if got := h.commits.subsetsAsked[0]; len(got) != 2 {
		t.Fatalf("subsets asked = %v", got)
	}
}

func TestEmptyAssessmentSkipsFetch(t *testing.T) {
	h := newHarness()
	h.inference.subsets = nil
	h.presenter.outcomes = []review.Outcome{rejectWith("explain the business reason"), {Approved: true}}

	state, err := h.run(t, Input{MaxIterations: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !state.EnhancementAttempted || h.commits.subsetCalls != 0 {
		t.Fatalf("enhanced=%v subset calls=%d", state.EnhancementAttempted, h.commits.subsetCalls)
	}
}

func TestTransitionsStayBounded(t *testing.T) {
	for maxIter := 0; maxIter <= 5; maxIter++ {
		h := newHarness()
		h.presenter.outcomes = []review.Outcome{rejectWith("I still don't see why this was needed")}

		state, err := h.run(t, Input{MaxIterations: maxIter})
		if err != nil {
			t.Fatalf("max=%d: Run: %v", maxIter, err)
		}
		if state.IterationCount != maxIter {
			t.Fatalf("max=%d: iterations = %d", maxIter, state.IterationCount)
		}
		executed := len(h.tracer.transitions)
		if executed > MaxTransitions(maxIter) {
			t.Fatalf("max=%d: %d transitions exceeds bound %d", maxIter, executed, MaxTransitions(maxIter))
		}
		enhancements := 0
		for _, stage := range h.tracer.stages() {
			if stage == StageEnhanceContext {
				enhancements++
			}
		}
		want := 0
		if maxIter > 0 {
			want = 1
		}
		if enhancements != want {
			t.Fatalf("max=%d: enhancements = %d, want %d", maxIter, enhancements, want)
		}
		if len(h.tracer.summaries) != 1 || h.tracer.summaries[0].Transitions != executed {
			t.Fatalf("max=%d: summary transitions mismatch", maxIter)
		}
	}
}

func TestPresenterSeesIterationProgress(t *testing.T) {
	h := newHarness()
	h.presenter.outcomes = []review.Outcome{rejectWith("tone it down"), rejectWith("shorter please"), {Approved: true}}

	if _, err := h.run(t, Input{MaxIterations: 3}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.presenter.drafts) != 3 {
		t.Fatalf("reviews = %d", len(h.presenter.drafts))
	}
	for i, draft := range h.presenter.drafts {
		if draft.Iteration != i || draft.MaxIterations != 3 {
			t.Fatalf("review %d: iteration %d/%d", i, draft.Iteration, draft.MaxIterations)
		}
		if draft.Subject.Repo != testRepo {
			t.Fatalf("review %d: subject %+v", i, draft.Subject)
		}
	}
}

func TestTracerFailureDoesNotFailRun(t *testing.T) {
	h := newHarness()
	h.tracer.err = errors.New("database is locked")

	state, err := h.run(t, Input{MaxIterations: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Disposition != DispositionSave {
		t.Fatalf("disposition = %s", state.Disposition)
	}
	if len(h.notifier.summaries) != 1 || h.notifier.summaries[0].RunID != "run-1" {
		t.Fatalf("notifier summaries = %+v", h.notifier.summaries)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Collaborators{Inference: newStubInference()}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing commit source: %v", err)
	}
	if _, err := New(Collaborators{Commits: &stubCommits{}}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing inference: %v", err)
	}
}

func TestClassificationFallsBackToInference(t *testing.T) {
	h := newHarness()
	h.inference.class = infer.FeedbackContextGap
	h.presenter.outcomes = []review.Outcome{rejectWith("the second half misses the point"), {Approved: true}}

	state, err := h.run(t, Input{MaxIterations: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.inference.classifyCalls != 1 {
		t.Fatalf("classify calls = %d, want 1", h.inference.classifyCalls)
	}
	if !state.EnhancementAttempted {
		t.Fatalf("inference classified a context gap, enhancement expected")
	}
}

func TestClassificationFailureIsSoft(t *testing.T) {
	h := newHarness()
	h.inference.classifyErr = errors.New("provider unavailable")
	h.presenter.outcomes = []review.Outcome{rejectWith("the second half misses the point"), {Approved: true}}

	state, err := h.run(t, Input{MaxIterations: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.EnhancementAttempted {
		t.Fatal("failed classification must not trigger enhancement")
	}
	if state.IterationCount != 1 {
		t.Fatalf("iterations = %d, want 1", state.IterationCount)
	}
	found := false
	for _, msg := range state.Errors {
		if strings.Contains(msg, "classify feedback") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected soft classification error, got %v", state.Errors)
	}
}

// revisePerSubject rejects each subject's first draft with feedback naming it.
type revisePerSubject struct{}

func (revisePerSubject) PresentAndCollect(ctx context.Context, draft review.Draft) (review.Outcome, error) {
	if draft.Iteration == 0 {
		return rejectWith("revise " + draft.Subject.SHA), nil
	}
	return review.Outcome{Approved: true}, nil
}

func TestConcurrentRunsKeepIndependentState(t *testing.T) {
	const runs = 16
	h := newHarness()
	collab := h.collaborators()
	collab.Presenter = revisePerSubject{}
	o, err := New(collab, WithTracer(h.tracer), WithNotifier(h.notifier))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	inputs := make([]Input, runs)
	states := make([]State, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := range runs {
		sha := fmt.Sprintf("%07x", 0xa00000+i)
		inputs[i] = Input{Repo: testRepo, SHA: sha, Guidance: "guidance " + sha, MaxIterations: 1 + i%3}
		wg.Add(1)
		go func() {
			defer wg.Done()
			states[i], errs[i] = o.Run(context.Background(), inputs[i])
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, runs)
	for i, state := range states {
		in := inputs[i]
		if errs[i] != nil {
			t.Fatalf("run %d: %v", i, errs[i])
		}
		if state.RunID == "" || seen[state.RunID] {
			t.Fatalf("run %d: run id %q missing or reused", i, state.RunID)
		}
		seen[state.RunID] = true
		if state.Subject.SHA != in.SHA || state.Facts == nil || state.Facts.SHA != in.SHA {
			t.Fatalf("run %d: subject=%s facts=%+v, want %s", i, state.Subject.SHA, state.Facts, in.SHA)
		}
		if state.Guidance != in.Guidance || state.MaxIterations != in.MaxIterations {
			t.Fatalf("run %d: guidance=%q max=%d, want %q/%d", i, state.Guidance, state.MaxIterations, in.Guidance, in.MaxIterations)
		}
		if state.IterationCount != 1 || state.Draft == nil || state.Review == nil || !state.Review.Approved {
			t.Fatalf("run %d: iterations=%d draft=%v review=%+v", i, state.IterationCount, state.Draft, state.Review)
		}
		if state.Disposition != DispositionSave || !strings.Contains(state.Result.Path, in.SHA) {
			t.Fatalf("run %d: disposition=%s path=%q", i, state.Disposition, state.Result.Path)
		}
	}

	if h.saver.calls != runs || len(h.notifier.summaries) != runs {
		t.Fatalf("saver calls=%d summaries=%d, want %d", h.saver.calls, len(h.notifier.summaries), runs)
	}
	if len(h.inference.synthInputs) != 2*runs {
		t.Fatalf("synth calls = %d, want %d", len(h.inference.synthInputs), 2*runs)
	}
	for _, in := range h.inference.synthInputs {
		if in.Guidance != "guidance "+in.Facts.SHA {
			t.Fatalf("guidance %q crossed into run for %s", in.Guidance, in.Facts.SHA)
		}
		if in.Feedback != "" && in.Feedback != "revise "+in.Facts.SHA {
			t.Fatalf("feedback %q crossed into run for %s", in.Feedback, in.Facts.SHA)
		}
	}
}
