package commit

import "strings"

// ChangeType is the closed set of change categories analysis may report.
type ChangeType string

const (
	ChangeFeature       ChangeType = "feature"
	ChangeBugfix        ChangeType = "bugfix"
	ChangeRefactor      ChangeType = "refactor"
	ChangePerformance   ChangeType = "performance"
	ChangeSecurity      ChangeType = "security"
	ChangeDocumentation ChangeType = "documentation"
	ChangeOther         ChangeType = "other"
)

// ParseChangeType maps free-form model output onto the closed set, falling
// back to ChangeOther.
func ParseChangeType(value string) ChangeType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "feature", "feat", "enhancement":
		return ChangeFeature
	case "bugfix", "bug", "fix", "bug_fix":
		return ChangeBugfix
	case "refactor", "refactoring":
		return ChangeRefactor
	case "performance", "perf", "optimization":
		return ChangePerformance
	case "security":
		return ChangeSecurity
	case "documentation", "docs", "doc":
		return ChangeDocumentation
	default:
		return ChangeOther
	}
}

// Interpretation is the structured analysis of a commit.
type Interpretation struct {
	Category           ChangeType
	Summary            string
	Impact             string
	KeyPoints          []string
	TechnicalDetails   []string
	AffectedComponents []string
	NarrativeAngle     string
	// Completeness is the model's own estimate, in [0,1], of how well the
	// retrieved facts explain the change.
	Completeness float64
}

// Normalize trims text fields, drops empty list entries, and clamps
// Completeness into [0,1].
func (i Interpretation) Normalize() Interpretation {
	i.Summary = strings.TrimSpace(i.Summary)
	i.Impact = strings.TrimSpace(i.Impact)
	i.NarrativeAngle = strings.TrimSpace(i.NarrativeAngle)
	i.KeyPoints = compact(i.KeyPoints)
	i.TechnicalDetails = compact(i.TechnicalDetails)
	i.AffectedComponents = compact(i.AffectedComponents)
	if i.Category == "" {
		i.Category = ChangeOther
	}
	switch {
	case i.Completeness < 0:
		i.Completeness = 0
	case i.Completeness > 1:
		i.Completeness = 1
	}
	return i
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
