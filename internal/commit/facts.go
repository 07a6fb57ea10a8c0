package commit

import (
	"slices"
	"strings"
	"time"
)

// Facts is the snapshot of source material retrieved for a subject.
type Facts struct {
	SHA         string
	Message     string
	Author      string
	AuthorEmail string
	Date        time.Time
	URL         string
	Diff        string
	// DiffTruncated reports that Diff was cut to the configured limit.
	DiffTruncated bool
	Files         []FileChange
	Additions     int
	Deletions     int
	// Project is the optional context bundle; nil when it could not be fetched.
	Project *ProjectContext
	// Extra holds enhancement subsets merged in after review feedback.
	Extra Enhancement
}

// FileChange summarizes one file touched by the commit.
type FileChange struct {
	Path      string
	Status    string
	Additions int
	Deletions int
}

// FilePaths returns the changed paths in commit order.
func (f Facts) FilePaths() []string {
	paths := make([]string, 0, len(f.Files))
	for _, file := range f.Files {
		paths = append(paths, file.Path)
	}
	return paths
}

// Title returns the first line of the commit message.
func (f Facts) Title() string {
	title, _, _ := strings.Cut(strings.TrimSpace(f.Message), "\n")
	return strings.TrimSpace(title)
}

// ProjectContext is background about the repository the commit belongs to.
type ProjectContext struct {
	Description   string
	Language      string
	Topics        []string
	Stars         int
	DefaultBranch string
	Homepage      string
	ReadmeSummary string
	// ConfigFile is the primary build/config file found at the revision.
	ConfigFile  string
	ProjectType string
}

// Subset names one kind of additional context that can be fetched after
// review feedback reveals a gap.
type Subset string

const (
	SubsetRelatedChange  Subset = "related_change"
	SubsetRecentHistory  Subset = "recent_history"
	SubsetStructure      Subset = "structure"
	SubsetIssueReference Subset = "issue_reference"
)

// Subsets returns the closed set of enhancement subsets in fetch order.
func Subsets() []Subset {
	return []Subset{SubsetRelatedChange, SubsetRecentHistory, SubsetStructure, SubsetIssueReference}
}

// ParseSubset accepts the canonical name plus hyphenated and camel-case forms.
func ParseSubset(value string) (Subset, bool) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "related_change", "related_changes", "relatedchange", "pull_request", "pull_requests":
		return SubsetRelatedChange, true
	case "recent_history", "recenthistory", "history":
		return SubsetRecentHistory, true
	case "structure", "repository_structure", "tree":
		return SubsetStructure, true
	case "issue_reference", "issue_references", "issuereference", "issues":
		return SubsetIssueReference, true
	}
	return "", false
}

// NormalizeSubsets parses values, drops unknown names and duplicates, and
// returns the result in canonical order.
func NormalizeSubsets(values []string) []Subset {
	seen := make(map[Subset]bool, len(values))
	for _, value := range values {
		if subset, ok := ParseSubset(value); ok {
			seen[subset] = true
		}
	}
	out := make([]Subset, 0, len(seen))
	for _, subset := range Subsets() {
		if seen[subset] {
			out = append(out, subset)
		}
	}
	return out
}

// Enhancement carries the additional context fetched for selected subsets.
type Enhancement struct {
	RelatedChanges []PullRequest
	RecentHistory  []HistoryEntry
	Structure      []string
	Issues         []Issue
	// Fetched lists subsets that returned data; Failed lists subsets whose
	// fetch failed. Both accumulate across merges.
	Fetched []Subset
	Failed  []Subset
}

// Empty reports whether no subset contributed data.
func (e Enhancement) Empty() bool {
	return len(e.RelatedChanges) == 0 && len(e.RecentHistory) == 0 && len(e.Structure) == 0 && len(e.Issues) == 0
}

// Merge folds other into e, keeping existing entries first.
func (e Enhancement) Merge(other Enhancement) Enhancement {
	e.RelatedChanges = append(slices.Clone(e.RelatedChanges), other.RelatedChanges...)
	e.RecentHistory = append(slices.Clone(e.RecentHistory), other.RecentHistory...)
	e.Structure = append(slices.Clone(e.Structure), other.Structure...)
	e.Issues = append(slices.Clone(e.Issues), other.Issues...)
	e.Fetched = appendUnique(e.Fetched, other.Fetched...)
	e.Failed = appendUnique(e.Failed, other.Failed...)
	return e
}

func appendUnique(dst []Subset, values ...Subset) []Subset {
	out := slices.Clone(dst)
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// PullRequest is a change request associated with the commit.
type PullRequest struct {
	Number int
	Title  string
	Body   string
	URL    string
}

// HistoryEntry is a recent commit touching the same files.
type HistoryEntry struct {
	SHA     string
	Message string
	Author  string
	Date    time.Time
}

// Issue is an issue referenced from the commit message.
type Issue struct {
	Number int
	Title  string
	Body   string
	State  string
	URL    string
}
