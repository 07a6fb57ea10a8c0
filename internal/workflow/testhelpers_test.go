package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"bluestar/internal/article"
	"bluestar/internal/commit"
	"bluestar/internal/infer"
	"bluestar/internal/publish"
	"bluestar/internal/review"
)

const (
	testRepo = "octo/widgets"
	testSHA  = "abc1234"
	fullSHA  = "abc1234def5678901234567890abcdef12345678"
)

type stubCommits struct {
	err         error
	projectErr  error
	subsetsErr  error
	enhancement commit.Enhancement
	block       bool

	mu           sync.Mutex
	fetchCalls   int
	subsetCalls  int
	subsetsAsked [][]commit.Subset
}

func (s *stubCommits) FetchCommit(ctx context.Context, subject commit.Subject) (commit.Facts, error) {
	s.mu.Lock()
	s.fetchCalls++
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return commit.Facts{}, fmt.Errorf("get commit: %w", ctx.Err())
	}
	if s.err != nil {
		return commit.Facts{}, s.err
	}
	sha := fullSHA
	if subject.SHA != testSHA {
		sha = subject.SHA
	}
	return commit.Facts{
		SHA:     sha,
		Message: "Add retry budget to webhook sender\n\nBody",
		Author:  "Dana",
		Diff:    "diff --git a/sender.go b/sender.go",
		Files:   []commit.FileChange{{Path: "sender.go", Status: "modified", Additions: 10, Deletions: 2}},
	}, nil
}

func (s *stubCommits) FetchProjectContext(ctx context.Context, subject commit.Subject, sha string) (*commit.ProjectContext, error) {
	if s.projectErr != nil {
		return nil, s.projectErr
	}
	return &commit.ProjectContext{Description: "Webhook delivery service", Language: "Go"}, nil
}

func (s *stubCommits) FetchSubsets(ctx context.Context, subject commit.Subject, facts commit.Facts, subsets []commit.Subset) (commit.Enhancement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subsetCalls++
	s.subsetsAsked = append(s.subsetsAsked, subsets)
	return s.enhancement, s.subsetsErr
}

type stubInference struct {
	completeness float64
	class        infer.FeedbackClass
	subsets      []commit.Subset
	analyzeErr   error
	synthErr     error
	classifyErr  error

	mu            sync.Mutex
	analyzeCalls  int
	synthInputs   []infer.SynthesisInput
	assessCalls   int
	classifyCalls int
}

func newStubInference() *stubInference {
	return &stubInference{
		completeness: 0.9,
		class:        infer.FeedbackStylistic,
		subsets:      []commit.Subset{commit.SubsetRelatedChange},
	}
}

func (s *stubInference) Analyze(ctx context.Context, facts commit.Facts, guidance string) (commit.Interpretation, error) {
	s.mu.Lock()
	s.analyzeCalls++
	s.mu.Unlock()
	if s.analyzeErr != nil {
		return commit.Interpretation{}, s.analyzeErr
	}
	return commit.Interpretation{
		Category:     commit.ChangeFeature,
		Summary:      "Adds a retry budget",
		Impact:       "Fewer dropped webhooks",
		KeyPoints:    []string{"bounded retries"},
		Completeness: s.completeness,
	}, nil
}

func (s *stubInference) Synthesize(ctx context.Context, in infer.SynthesisInput) (article.Post, error) {
	s.mu.Lock()
	s.synthInputs = append(s.synthInputs, in)
	n := len(s.synthInputs)
	s.mu.Unlock()
	if s.synthErr != nil {
		return article.Post{}, s.synthErr
	}
	return article.Post{
		Title:  fmt.Sprintf("Draft %d", n),
		Author: "BlueStar AI",
		Date:   "2026-10-17",
		Body:   []article.Block{article.Paragraph("Webhooks now retry within a budget.")},
	}, nil
}

func (s *stubInference) AssessContext(ctx context.Context, facts commit.Facts, interp commit.Interpretation, feedback string) ([]commit.Subset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assessCalls++
	return s.subsets, nil
}

func (s *stubInference) ClassifyFeedback(ctx context.Context, feedback string) (infer.FeedbackClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifyCalls++
	if s.classifyErr != nil {
		return "", s.classifyErr
	}
	return s.class, nil
}

// scriptedPresenter replays outcomes in order and repeats the last one.
type scriptedPresenter struct {
	mu       sync.Mutex
	outcomes []review.Outcome
	drafts   []review.Draft
}

func rejectWith(feedback string) review.Outcome {
	return review.Outcome{Feedback: feedback}
}

func (p *scriptedPresenter) PresentAndCollect(ctx context.Context, draft review.Draft) (review.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drafts = append(p.drafts, draft)
	if len(p.outcomes) == 0 {
		return review.Outcome{Approved: true}, nil
	}
	idx := min(len(p.drafts)-1, len(p.outcomes)-1)
	return p.outcomes[idx], nil
}

type stubPublisher struct {
	name  string
	err   error
	mu    sync.Mutex
	calls int
}

func (p *stubPublisher) Name() string { return p.name }

func (p *stubPublisher) Publish(ctx context.Context, post article.Post, meta publish.Metadata) (publish.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return publish.Result{}, p.err
	}
	return publish.Result{Target: p.name, ID: "post-1", URL: "https://blog.example.com/" + meta.SHA[:7]}, nil
}

type stubSaver struct {
	mu    sync.Mutex
	calls int
	metas []publish.Metadata
}

func (s *stubSaver) Save(ctx context.Context, post article.Post, meta publish.Metadata) (publish.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.metas = append(s.metas, meta)
	return publish.Result{Target: publish.TargetLocal, Path: "/tmp/out/" + meta.SHA[:7] + ".html"}, nil
}

type recordingTracer struct {
	mu          sync.Mutex
	runs        []RunInfo
	transitions []Transition
	summaries   []Summary
	err         error
}

func (r *recordingTracer) RunStarted(ctx context.Context, run RunInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

func (r *recordingTracer) StageFinished(ctx context.Context, runID string, t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
	return r.err
}

func (r *recordingTracer) RunFinished(ctx context.Context, summary Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, summary)
	return r.err
}

func (r *recordingTracer) stages() []StageID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StageID, 0, len(r.transitions))
	for _, t := range r.transitions {
		out = append(out, t.Stage)
	}
	return out
}

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []Summary
}

func (n *recordingNotifier) NotifyRun(ctx context.Context, summary Summary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, summary)
	return nil
}

type harness struct {
	commits   *stubCommits
	inference *stubInference
	presenter *scriptedPresenter
	ghost     *stubPublisher
	saver     *stubSaver
	tracer    *recordingTracer
	notifier  *recordingNotifier
}

func newHarness() *harness {
	return &harness{
		commits:   &stubCommits{},
		inference: newStubInference(),
		presenter: &scriptedPresenter{},
		ghost:     &stubPublisher{name: publish.TargetGhost},
		saver:     &stubSaver{},
		tracer:    &recordingTracer{},
		notifier:  &recordingNotifier{},
	}
}

func (h *harness) collaborators() Collaborators {
	return Collaborators{
		Commits:    h.commits,
		Inference:  h.inference,
		Presenter:  h.presenter,
		Decider:    review.Preset{Target: publish.TargetLocal},
		Publishers: []publish.Publisher{h.ghost},
		Saver:      h.saver,
	}
}

func (h *harness) orchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	base := []Option{
		WithTracer(h.tracer),
		WithNotifier(h.notifier),
		WithClock(func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }),
		WithRunIDs(func() string { return "run-1" }),
	}
	o, err := New(h.collaborators(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func (h *harness) run(t *testing.T, in Input, opts ...Option) (State, error) {
	t.Helper()
	if in.Repo == "" {
		in.Repo = testRepo
	}
	if in.SHA == "" {
		in.SHA = testSHA
	}
	return h.orchestrator(t, opts...).Run(context.Background(), in)
}

func assertStages(t *testing.T, got []StageID, want ...StageID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stage %d = %s, want %s (all: %v)", i, got[i], want[i], got)
		}
	}
}
