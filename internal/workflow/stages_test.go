package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"bluestar/internal/commit"
	"bluestar/internal/logging"
	"bluestar/internal/publish"
	"bluestar/internal/services"
)

func newTestRunner(h *harness) *stageRunner {
	return &stageRunner{
		collab:    h.collaborators(),
		threshold: DefaultCompletenessThreshold,
		logger:    logging.NewNop(),
		now:       func() time.Time { return time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC) },
	}
}

func fetchedState(t *testing.T, r *stageRunner) State {
	t.Helper()
	s, err := r.validateInput(context.Background(), NewState(Input{Repo: "https://github.com/Octo/Widgets.git", SHA: "ABC1234", MaxIterations: 2}))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	s, err = r.fetchCommit(context.Background(), s)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	return s
}

func TestValidateInputCanonicalizesSubject(t *testing.T) {
	r := newTestRunner(newHarness())
	s := fetchedState(t, r)
	if s.Subject.Repo != "Octo/Widgets" {
		t.Fatalf("repo = %q", s.Subject.Repo)
	}
	if s.Subject.SHA != "abc1234" {
		t.Fatalf("sha = %q", s.Subject.SHA)
	}
}

func TestAnalyzeIsIdempotentAndScoped(t *testing.T) {
	h := newHarness()
	r := newTestRunner(h)
	base := fetchedState(t, r)

	first, err := r.analyzeCommit(context.Background(), base)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	second, err := r.analyzeCommit(context.Background(), base)
	if err != nil {
		t.Fatalf("analyze again: %v", err)
	}
	if !reflect.DeepEqual(*first.Interpretation, *second.Interpretation) {
		t.Fatalf("interpretations differ: %+v vs %+v", first.Interpretation, second.Interpretation)
	}

	first.Interpretation = nil
	if !reflect.DeepEqual(first, base) {
		t.Fatalf("analysis wrote outside its write-set")
	}
}

func TestSynthesizeDoesNotCountIterations(t *testing.T) {
	h := newHarness()
	r := newTestRunner(h)
	s := fetchedState(t, r)
	s, err := r.analyzeCommit(context.Background(), s)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for range 2 {
		s, err = r.synthesizeContent(context.Background(), s)
		if err != nil {
			t.Fatalf("synthesize: %v", err)
		}
	}
	if s.IterationCount != 0 {
		t.Fatalf("iterations = %d, want 0", s.IterationCount)
	}
	if s.Draft == nil || s.Draft.Title != "Draft 2" {
		t.Fatalf("draft should be overwritten, got %+v", s.Draft)
	}
}

func TestSoftErrorsDoNotShareBacking(t *testing.T) {
	base := State{Errors: make([]string, 1, 4)}
	a := base.withError("a")
	b := base.withError("b")
	if a.Errors[1] != "a" || b.Errors[1] != "b" || len(base.Errors) != 1 {
		t.Fatalf("errors aliased: base=%v a=%v b=%v", base.Errors, a.Errors, b.Errors)
	}
}

func TestDecideUsesDeciderWithoutPreset(t *testing.T) {
	h := newHarness()
	r := newTestRunner(h)
	s, err := r.decidePublishTarget(context.Background(), State{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if s.PublishTarget != publish.TargetLocal || s.Disposition != DispositionSave {
		t.Fatalf("target=%s disposition=%s", s.PublishTarget, s.Disposition)
	}
}

func TestTargetsListsConfiguredOptions(t *testing.T) {
	h := newHarness()
	got := h.collaborators().Targets()
	want := []string{publish.TargetGhost, publish.TargetLocal, publish.TargetDiscard}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("targets = %v, want %v", got, want)
	}
	if got := (Collaborators{}).Targets(); !reflect.DeepEqual(got, []string{publish.TargetDiscard}) {
		t.Fatalf("bare targets = %v", got)
	}
}

func TestMetadataUsesResolvedSHA(t *testing.T) {
	h := newHarness()
	r := newTestRunner(h)
	s := fetchedState(t, r)
	s.Interpretation = &commit.Interpretation{Category: commit.ChangeFeature}
	meta := r.metadata(s)
	if meta.SHA != fullSHA || meta.Category != commit.ChangeFeature || meta.When.IsZero() {
		t.Fatalf("metadata = %+v", meta)
	}
}

func TestDiscardIsTerminal(t *testing.T) {
	r := newTestRunner(newHarness())
	s, err := r.discard(context.Background(), State{Disposition: DispositionDiscard})
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	if !s.Terminal || s.Result.Target != publish.TargetDiscard {
		t.Fatalf("state = %+v", s)
	}
}

func TestStageErrorLeadsWithCarriedMarker(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		prefix string
		kind   services.Kind
	}{
		{"not found", fmt.Errorf("github: %w", services.ErrNotFound), "not found: fetch_commit: get commit", services.KindNotFound},
		{"auth", fmt.Errorf("github: %w", services.ErrAuth), "authentication failed: fetch_commit", services.KindAuthInvalid},
		{"validation", fmt.Errorf("decode: %w", services.ErrValidation), "validation error: fetch_commit", services.KindValidation},
		{"deadline", fmt.Errorf("get commit: %w", context.DeadlineExceeded), "timeout: fetch_commit", services.KindTransient},
		{"untagged", errors.New("socket closed"), "external service error: fetch_commit", services.KindFatal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := stageError(StageFetchCommit, "get commit", "", tc.err)
			if !strings.HasPrefix(err.Error(), tc.prefix) {
				t.Fatalf("message %q, want prefix %q", err.Error(), tc.prefix)
			}
			if tc.kind != services.KindFatal && strings.Contains(err.Error(), "external service error") {
				t.Fatalf("tagged error re-labelled as external: %q", err.Error())
			}
			if got := services.KindOf(err); got != tc.kind {
				t.Fatalf("KindOf = %s, want %s", got, tc.kind)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("cause not retained in %v", err)
			}
		})
	}
}
