package workflow

import (
	"context"
	"reflect"
	"testing"

	"bluestar/internal/commit"
	"bluestar/internal/infer"
)

func TestRouteLinearStages(t *testing.T) {
	cases := []struct {
		last StageID
		want StageID
	}{
		{"", StageValidateInput},
		{StageValidateInput, StageFetchCommit},
		{StageFetchCommit, StageAnalyzeCommit},
		{StageAnalyzeCommit, StageSynthesizeContent},
		{StageSynthesizeContent, StageCollectFeedback},
		{StageEnhanceContext, StageAnalyzeCommit},
		{StageSave, StageDone},
	}
	for _, tc := range cases {
		got := Route(State{Last: tc.last, MaxIterations: 3})
		if got.Next != tc.want {
			t.Fatalf("after %q: next = %s, want %s", tc.last, got.Next, tc.want)
		}
		if got.IncrementIteration {
			t.Fatalf("after %q: linear steps must not count iterations", tc.last)
		}
	}
}

func TestRouteFeedback(t *testing.T) {
	gap := &Review{Feedback: "why?", Class: infer.FeedbackContextGap}
	style := &Review{Feedback: "shorter", Class: infer.FeedbackStylistic}
	cases := []struct {
		name      string
		state     State
		want      StageID
		increment bool
	}{
		{"approved", State{Review: &Review{Approved: true}, MaxIterations: 3}, StageDecidePublishTarget, false},
		{"cap before enhancement", State{Review: gap, IterationCount: 2, MaxIterations: 2}, StageDecidePublishTarget, false},
		{"zero budget", State{Review: gap, MaxIterations: 0}, StageDecidePublishTarget, false},
		{"context gap", State{Review: gap, MaxIterations: 3}, StageEnhanceContext, false},
		{"context gap after enhancement", State{Review: gap, MaxIterations: 3, EnhancementAttempted: true}, StageSynthesizeContent, true},
		{"stylistic", State{Review: style, IterationCount: 1, MaxIterations: 3}, StageSynthesizeContent, true},
		{"unclassified", State{Review: &Review{Feedback: "hmm"}, MaxIterations: 3}, StageSynthesizeContent, true},
	}
	for _, tc := range cases {
		tc.state.Last = StageCollectFeedback
		got := Route(tc.state)
		if got.Next != tc.want || got.IncrementIteration != tc.increment {
			t.Fatalf("%s: got %+v, want next=%s increment=%v", tc.name, got, tc.want, tc.increment)
		}
		if got.Reason == "" {
			t.Fatalf("%s: decision should carry a reason", tc.name)
		}
	}
}

func TestRouteDisposition(t *testing.T) {
	cases := map[Disposition]StageID{
		DispositionPublish:   StagePublish,
		DispositionSave:      StageSave,
		DispositionDiscard:   StageDiscard,
		DispositionUndecided: StageDone,
	}
	for disposition, want := range cases {
		got := Route(State{Last: StageDecidePublishTarget, Disposition: disposition})
		if got.Next != want {
			t.Fatalf("%s: next = %s, want %s", disposition, got.Next, want)
		}
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	state := State{
		Last:           StageCollectFeedback,
		Review:         &Review{Feedback: "why?", Class: infer.FeedbackContextGap},
		IterationCount: 1,
		MaxIterations:  3,
		Facts:          &commit.Facts{SHA: fullSHA},
	}
	first := Route(state)
	for range 10 {
		if got := Route(state); !reflect.DeepEqual(got, first) {
			t.Fatalf("route changed: %+v vs %+v", got, first)
		}
	}
	if state.IterationCount != 1 {
		t.Fatalf("route must not modify state")
	}
}

func TestRouteTerminal(t *testing.T) {
	got := Route(State{Terminal: true, Last: StageFetchCommit})
	if got.Next != StageDone {
		t.Fatalf("terminal state routed to %s", got.Next)
	}
}

func TestMaxTransitions(t *testing.T) {
	if got := MaxTransitions(0); got != 11 {
		t.Fatalf("MaxTransitions(0) = %d", got)
	}
	if got := MaxTransitions(3); got != 17 {
		t.Fatalf("MaxTransitions(3) = %d", got)
	}
	if got := MaxTransitions(-2); got != 11 {
		t.Fatalf("MaxTransitions(-2) = %d", got)
	}
}

func TestKeywordClass(t *testing.T) {
	cases := []struct {
		feedback string
		want     infer.FeedbackClass
		ok       bool
	}{
		{"this is unclear, please simplify", infer.FeedbackStylistic, true},
		{"I don't understand why this change was needed", infer.FeedbackContextGap, true},
		{"What problem does this solve?", infer.FeedbackContextGap, true},
		{"Fix the typo in the title", infer.FeedbackStylistic, true},
		{"Needs more business context", infer.FeedbackContextGap, true},
		{"it reads badly", "", false},
		{"why is the tone so formal", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := KeywordClass(tc.feedback)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%q: got (%q, %v), want (%q, %v)", tc.feedback, got, ok, tc.want, tc.ok)
		}
	}
}

type countingClassifier struct {
	class infer.FeedbackClass
	calls int
}

func (c *countingClassifier) ClassifyFeedback(context.Context, string) (infer.FeedbackClass, error) {
	c.calls++
	return c.class, nil
}

func TestClassifyFeedbackTiers(t *testing.T) {
	low := &commit.Interpretation{Completeness: 0.3}
	high := &commit.Interpretation{Completeness: 0.8}
	cases := []struct {
		name       string
		feedback   string
		interp     *commit.Interpretation
		want       infer.FeedbackClass
		wantSource string
		wantCalls  int
	}{
		{"keyword wins over low completeness", "please simplify", low, infer.FeedbackStylistic, ClassSourceKeyword, 0},
		{"low completeness", "it reads badly", low, infer.FeedbackContextGap, ClassSourceCompleteness, 0},
		{"inference", "it reads badly", high, infer.FeedbackStylistic, ClassSourceInference, 1},
		{"no interpretation", "it reads badly", nil, infer.FeedbackStylistic, ClassSourceInference, 1},
	}
	for _, tc := range cases {
		classifier := &countingClassifier{class: infer.FeedbackStylistic}
		got, source, err := classifyFeedback(context.Background(), classifier, tc.feedback, tc.interp, 0.6)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want || source != tc.wantSource || classifier.calls != tc.wantCalls {
			t.Fatalf("%s: got (%s, %s, %d calls)", tc.name, got, source, classifier.calls)
		}
	}
}
