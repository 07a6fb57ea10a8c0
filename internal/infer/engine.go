package infer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bluestar/internal/article"
	"bluestar/internal/commit"
	"bluestar/internal/logging"
	"bluestar/internal/services"
	"bluestar/internal/services/llm"
)

// Kind names one of the prompt kinds.
type Kind string

const (
	KindAnalyze          Kind = "analyze"
	KindSynthesize       Kind = "synthesize"
	KindAssessContext    Kind = "assessContext"
	KindClassifyFeedback Kind = "classifyFeedback"
)

// FeedbackClass is the closed result of feedback classification.
type FeedbackClass string

const (
	FeedbackContextGap FeedbackClass = "context_gap"
	FeedbackStylistic  FeedbackClass = "stylistic"
)

// SynthesisInput carries everything a synthesis pass may draw on.
type SynthesisInput struct {
	Facts          commit.Facts
	Interpretation commit.Interpretation
	Guidance       string
	// Feedback and Previous are set on refinement passes.
	Feedback string
	Previous *article.Post
}

// Engine issues typed inference calls over a JSON completer.
type Engine struct {
	client llm.Completer
	logger *slog.Logger
	author string
	now    func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logging.NewComponentLogger(logger, "infer") }
}

// WithAuthor sets the byline used when the model omits one.
func WithAuthor(author string) Option {
	return func(e *Engine) {
		if author = strings.TrimSpace(author); author != "" {
			e.author = author
		}
	}
}

// WithClock overrides the clock used for default post dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an Engine around client.
func New(client llm.Completer, opts ...Option) *Engine {
	e := &Engine{
		client: client,
		logger: logging.NewNop(),
		author: "BlueStar AI",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type analysisPayload struct {
	Category           string   `json:"category"`
	Summary            string   `json:"summary"`
	Impact             string   `json:"impact"`
	KeyPoints          []string `json:"key_points"`
	TechnicalDetails   []string `json:"technical_details"`
	AffectedComponents []string `json:"affected_components"`
	NarrativeAngle     string   `json:"narrative_angle"`
	Completeness       *float64 `json:"completeness"`
}

// Analyze derives an interpretation from the retrieved facts.
func (e *Engine) Analyze(ctx context.Context, facts commit.Facts, guidance string) (commit.Interpretation, error) {
	var payload analysisPayload
	if err := e.complete(ctx, KindAnalyze, AnalyzePrompt, analysisUserPrompt(facts, guidance), &payload); err != nil {
		return commit.Interpretation{}, err
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return commit.Interpretation{}, validationError(KindAnalyze, errors.New("summary missing"))
	}
	if payload.Completeness == nil {
		return commit.Interpretation{}, validationError(KindAnalyze, errors.New("completeness missing"))
	}
	interp := commit.Interpretation{
		Category:           commit.ParseChangeType(payload.Category),
		Summary:            payload.Summary,
		Impact:             payload.Impact,
		KeyPoints:          payload.KeyPoints,
		TechnicalDetails:   payload.TechnicalDetails,
		AffectedComponents: payload.AffectedComponents,
		NarrativeAngle:     payload.NarrativeAngle,
		Completeness:       *payload.Completeness,
	}.Normalize()
	e.logger.Debug("analysis decoded",
		logging.String("category", string(interp.Category)),
		logging.Float64("completeness", interp.Completeness),
		logging.Int("key_points", len(interp.KeyPoints)),
	)
	return interp, nil
}

// Synthesize produces a complete post. The result always replaces any
// previous draft.
func (e *Engine) Synthesize(ctx context.Context, in SynthesisInput) (article.Post, error) {
	var post article.Post
	if err := e.complete(ctx, KindSynthesize, SynthesizePrompt, synthesisUserPrompt(in), &post); err != nil {
		return article.Post{}, err
	}
	post = post.Normalize()
	if post.Author == "" {
		post.Author = e.author
	}
	if _, err := time.Parse(time.DateOnly, post.Date); err != nil {
		post.Date = e.now().Format(time.DateOnly)
	}
	if err := post.Validate(); err != nil {
		return article.Post{}, validationError(KindSynthesize, err)
	}
	e.logger.Debug("draft decoded",
		logging.String("title", post.Title),
		logging.Int("blocks", len(post.Body)),
		logging.Int("words", post.WordCount()),
	)
	return post, nil
}

// AssessContext selects the enhancement subsets likely to resolve feedback.
// Unknown subset names are dropped; an empty selection is valid.
func (e *Engine) AssessContext(ctx context.Context, facts commit.Facts, interp commit.Interpretation, feedback string) ([]commit.Subset, error) {
	var payload struct {
		Subsets   []string `json:"subsets"`
		Reasoning string   `json:"reasoning"`
	}
	if err := e.complete(ctx, KindAssessContext, AssessContextPrompt, assessUserPrompt(facts, interp, feedback), &payload); err != nil {
		return nil, err
	}
	subsets := commit.NormalizeSubsets(payload.Subsets)
	e.logger.Debug("context assessed",
		logging.Any("subsets", subsets),
		logging.String("reasoning", payload.Reasoning),
	)
	return subsets, nil
}

// ClassifyFeedback reports whether feedback asks for missing information or
// for a different presentation of the same facts.
func (e *Engine) ClassifyFeedback(ctx context.Context, feedback string) (FeedbackClass, error) {
	var payload struct {
		Classification string `json:"classification"`
		Reasoning      string `json:"reasoning"`
	}
	user := "Reviewer feedback:\n" + strings.TrimSpace(feedback)
	if err := e.complete(ctx, KindClassifyFeedback, ClassifyFeedbackPrompt, user, &payload); err != nil {
		return "", err
	}
	class, ok := ParseFeedbackClass(payload.Classification)
	if !ok {
		return "", validationError(KindClassifyFeedback, fmt.Errorf("unknown classification %q", payload.Classification))
	}
	return class, nil
}

// ParseFeedbackClass accepts the canonical names plus common variants.
func ParseFeedbackClass(value string) (FeedbackClass, bool) {
	switch strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(value))) {
	case "context_gap", "contextgap", "context", "missing_context":
		return FeedbackContextGap, true
	case "stylistic", "style", "structural", "stylistic_structural":
		return FeedbackStylistic, true
	}
	return "", false
}

func (e *Engine) complete(ctx context.Context, kind Kind, system, user string, dst any) error {
	if e.client == nil {
		return fmt.Errorf("%w: infer: no completion provider configured", services.ErrConfiguration)
	}
	start := time.Now()
	raw, err := e.client.CompleteJSON(ctx, system, user)
	if err != nil {
		return fmt.Errorf("infer %s: %w", kind, err)
	}
	if err := llm.DecodeLLMJSON(raw, dst); err != nil {
		return validationError(kind, err)
	}
	e.logger.Debug("inference completed",
		logging.String("kind", string(kind)),
		logging.Duration("elapsed", time.Since(start)),
		logging.Int("response_chars", len(raw)),
	)
	return nil
}

func validationError(kind Kind, err error) error {
	return fmt.Errorf("%w: infer %s: %w", services.ErrValidation, kind, err)
}
