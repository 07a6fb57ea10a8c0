package workflow

import (
	"context"
	"strings"

	"bluestar/internal/commit"
	"bluestar/internal/infer"
	"bluestar/internal/textutil"
)

// Sources recorded in Review.ClassSource.
const (
	ClassSourceKeyword      = "keyword"
	ClassSourceCompleteness = "completeness"
	ClassSourceInference    = "inference"
)

var contextGapPhrases = []string{
	"why",
	"motivation",
	"reason",
	"business",
	"needed",
	"purpose",
	"background",
	"problem",
	"context",
	"rationale",
	"what does it solve",
}

var stylisticPhrases = []string{
	"simplify",
	"simpler",
	"shorter",
	"longer",
	"tone",
	"concise",
	"wordy",
	"verbose",
	"format",
	"structure",
	"title",
	"rephrase",
	"reword",
	"typo",
	"grammar",
	"unclear",
	"headline",
	"bullet",
}

// KeywordClass runs the cheap first tier of feedback classification. The
// second result is false when neither phrase set wins.
func KeywordClass(feedback string) (infer.FeedbackClass, bool) {
	gap, style := phraseHits(feedback)
	switch {
	case gap > style:
		return infer.FeedbackContextGap, true
	case style > gap:
		return infer.FeedbackStylistic, true
	default:
		return "", false
	}
}

func phraseHits(feedback string) (gap, style int) {
	tokens := textutil.Tokenize(feedback)
	words := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		words[strings.Trim(token, "'")] = struct{}{}
	}
	padded := " " + strings.Join(tokens, " ") + " "
	count := func(phrases []string) int {
		n := 0
		for _, phrase := range phrases {
			if strings.Contains(phrase, " ") {
				if strings.Contains(padded, " "+phrase+" ") {
					n++
				}
				continue
			}
			if _, ok := words[phrase]; ok {
				n++
			}
		}
		return n
	}
	return count(contextGapPhrases), count(stylisticPhrases)
}

// feedbackClassifier is the inference tier.
type feedbackClassifier interface {
	ClassifyFeedback(ctx context.Context, feedback string) (infer.FeedbackClass, error)
}

// classifyFeedback decides whether feedback asks for missing context or for a
// different rendering of what is already known. Keywords settle most cases.
// When they do not, an analysis that already rated itself below threshold is
// taken as a context gap without another model call.
func classifyFeedback(ctx context.Context, classifier feedbackClassifier, feedback string, interp *commit.Interpretation, threshold float64) (infer.FeedbackClass, string, error) {
	if class, ok := KeywordClass(feedback); ok {
		return class, ClassSourceKeyword, nil
	}
	if interp != nil && interp.Completeness < threshold {
		return infer.FeedbackContextGap, ClassSourceCompleteness, nil
	}
	class, err := classifier.ClassifyFeedback(ctx, feedback)
	if err != nil {
		return "", ClassSourceInference, err
	}
	return class, ClassSourceInference, nil
}
