package workflow

import (
	"context"

	"bluestar/internal/article"
	"bluestar/internal/commit"
	"bluestar/internal/infer"
	"bluestar/internal/publish"
	"bluestar/internal/review"
)

// CommitSource retrieves commit facts and optional context.
type CommitSource interface {
	FetchCommit(ctx context.Context, subject commit.Subject) (commit.Facts, error)
	FetchProjectContext(ctx context.Context, subject commit.Subject, sha string) (*commit.ProjectContext, error)
	FetchSubsets(ctx context.Context, subject commit.Subject, facts commit.Facts, subsets []commit.Subset) (commit.Enhancement, error)
}

// Inference covers the four prompt kinds the stages use.
type Inference interface {
	Analyze(ctx context.Context, facts commit.Facts, guidance string) (commit.Interpretation, error)
	Synthesize(ctx context.Context, in infer.SynthesisInput) (article.Post, error)
	AssessContext(ctx context.Context, facts commit.Facts, interp commit.Interpretation, feedback string) ([]commit.Subset, error)
	ClassifyFeedback(ctx context.Context, feedback string) (infer.FeedbackClass, error)
}

// Collaborators bundles everything stages call out to.
type Collaborators struct {
	Commits    CommitSource
	Inference  Inference
	Presenter  review.Presenter
	Decider    review.Decider
	Publishers []publish.Publisher
	// Saver handles the local target; nil removes local from the options.
	Saver publish.Saver
}

// Targets lists the publish decision options in menu order.
func (c Collaborators) Targets() []string {
	targets := make([]string, 0, len(c.Publishers)+2)
	for _, p := range c.Publishers {
		if p != nil {
			targets = append(targets, p.Name())
		}
	}
	if c.Saver != nil {
		targets = append(targets, publish.TargetLocal)
	}
	return append(targets, publish.TargetDiscard)
}

func (c Collaborators) publisher(name string) (publish.Publisher, bool) {
	for _, p := range c.Publishers {
		if p != nil && p.Name() == name {
			return p, true
		}
	}
	return nil, false
}
