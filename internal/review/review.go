package review

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"bluestar/internal/article"
	"bluestar/internal/commit"
	"bluestar/internal/services"
)

// Outcome is the reviewer's verdict on one draft. Approval and empty
// feedback are equivalent.
type Outcome struct {
	Approved bool
	Feedback string
}

// Normalize trims feedback and treats an empty rejection as approval.
func (o Outcome) Normalize() Outcome {
	o.Feedback = strings.TrimSpace(o.Feedback)
	if o.Approved || o.Feedback == "" {
		return Outcome{Approved: true}
	}
	return o
}

// Draft is what a presenter shows for review.
type Draft struct {
	Subject        commit.Subject
	Post           article.Post
	Interpretation commit.Interpretation
	// Iteration is the number of completed refinement rounds so far.
	Iteration     int
	MaxIterations int
}

// Presenter shows a draft and collects the verdict.
type Presenter interface {
	PresentAndCollect(ctx context.Context, draft Draft) (Outcome, error)
}

// Decider chooses one of the offered targets.
type Decider interface {
	Decide(ctx context.Context, options []string) (string, error)
}

// Autopilot approves every draft without prompting.
type Autopilot struct{}

// PresentAndCollect implements Presenter.
func (Autopilot) PresentAndCollect(ctx context.Context, _ Draft) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	return Outcome{Approved: true}, nil
}

// Preset returns a target chosen ahead of the run.
type Preset struct {
	Target string
}

// Decide implements Decider. The preset must be one of the offered options.
func (p Preset) Decide(ctx context.Context, options []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target := strings.ToLower(strings.TrimSpace(p.Target))
	if !slices.Contains(options, target) {
		return "", fmt.Errorf("%w: target %q is not available (configured: %s)",
			services.ErrConfiguration, p.Target, strings.Join(options, ", "))
	}
	return target, nil
}
