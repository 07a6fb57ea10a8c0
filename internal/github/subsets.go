package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bluestar/internal/commit"
)

const (
	maxHistoryEntries  = 5
	maxHistoryPaths    = 3
	maxIssueReferences = 3
	maxStructure       = 50
	maxBodyChars       = 1500
	subsetConcurrency  = 2
)

var issueRefPattern = regexp.MustCompile(`(?:^|[^\w/])#(\d+)\b`)

type pullResponse struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

type historyResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

type issueResponse struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

// FetchSubsets retrieves the requested enhancement subsets concurrently.
// A failing subset is recorded in Enhancement.Failed and its error joined
// into the returned error; the other subsets are still returned.
func (c *Client) FetchSubsets(ctx context.Context, subject commit.Subject, facts commit.Facts, subsets []commit.Subset) (commit.Enhancement, error) {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		result   commit.Enhancement
		failures []error
	)
	g.SetLimit(subsetConcurrency)
	for _, subset := range subsets {
		g.Go(func() error {
			part, err := c.fetchSubset(ctx, subject, facts, subset)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, subset)
				failures = append(failures, fmt.Errorf("%s: %w", subset, err))
				return nil
			}
			result = result.Merge(part)
			result.Fetched = append(result.Fetched, subset)
			return nil
		})
	}
	_ = g.Wait()
	result.Fetched = ordered(result.Fetched)
	result.Failed = ordered(result.Failed)
	return result, errors.Join(failures...)
}

func (c *Client) fetchSubset(ctx context.Context, subject commit.Subject, facts commit.Facts, subset commit.Subset) (commit.Enhancement, error) {
	switch subset {
	case commit.SubsetRelatedChange:
		pulls, err := c.relatedChanges(ctx, subject, facts.SHA)
		return commit.Enhancement{RelatedChanges: pulls}, err
	case commit.SubsetRecentHistory:
		history, err := c.recentHistory(ctx, subject, facts)
		return commit.Enhancement{RecentHistory: history}, err
	case commit.SubsetStructure:
		structure, err := c.structure(ctx, subject, facts.SHA)
		return commit.Enhancement{Structure: structure}, err
	case commit.SubsetIssueReference:
		issues, err := c.issueReferences(ctx, subject, facts.Message)
		return commit.Enhancement{Issues: issues}, err
	default:
		return commit.Enhancement{}, fmt.Errorf("unknown subset %q", subset)
	}
}

func (c *Client) relatedChanges(ctx context.Context, subject commit.Subject, sha string) ([]commit.PullRequest, error) {
	var pulls []pullResponse
	path := repoPath(subject) + "/commits/" + sha + "/pulls"
	if err := c.getJSON(ctx, path, nil, &pulls); err != nil {
		return nil, err
	}
	out := make([]commit.PullRequest, 0, len(pulls))
	for _, pr := range pulls {
		out = append(out, commit.PullRequest{
			Number: pr.Number,
			Title:  pr.Title,
			Body:   truncateRunes(pr.Body, maxBodyChars),
			URL:    pr.HTMLURL,
		})
	}
	return out, nil
}

func (c *Client) recentHistory(ctx context.Context, subject commit.Subject, facts commit.Facts) ([]commit.HistoryEntry, error) {
	paths := facts.FilePaths()
	if len(paths) > maxHistoryPaths {
		paths = paths[:maxHistoryPaths]
	}
	seen := map[string]bool{facts.SHA: true}
	var out []commit.HistoryEntry
	for _, path := range paths {
		query := url.Values{
			"path":     {path},
			"sha":      {facts.SHA},
			"per_page": {strconv.Itoa(maxHistoryEntries + 1)},
		}
		var history []historyResponse
		if err := c.getJSON(ctx, repoPath(subject)+"/commits", query, &history); err != nil {
			return nil, err
		}
		for _, entry := range history {
			if seen[entry.SHA] {
				continue
			}
			seen[entry.SHA] = true
			out = append(out, commit.HistoryEntry{
				SHA:     entry.SHA,
				Message: entry.Commit.Message,
				Author:  entry.Commit.Author.Name,
				Date:    entry.Commit.Author.Date,
			})
		}
	}
	slices.SortStableFunc(out, func(a, b commit.HistoryEntry) int {
		return b.Date.Compare(a.Date)
	})
	if len(out) > maxHistoryEntries {
		out = out[:maxHistoryEntries]
	}
	return out, nil
}

func (c *Client) structure(ctx context.Context, subject commit.Subject, sha string) ([]string, error) {
	var tree treeResponse
	if err := c.getJSON(ctx, repoPath(subject)+"/git/trees/"+sha, nil, &tree); err != nil {
		return nil, err
	}
	out := make([]string, 0, min(len(tree.Tree), maxStructure))
	for _, entry := range tree.Tree {
		if len(out) == maxStructure {
			break
		}
		if entry.Type == "tree" {
			out = append(out, entry.Path+"/")
			continue
		}
		out = append(out, entry.Path)
	}
	return out, nil
}

func (c *Client) issueReferences(ctx context.Context, subject commit.Subject, message string) ([]commit.Issue, error) {
	numbers := IssueReferences(message)
	out := make([]commit.Issue, 0, len(numbers))
	for _, number := range numbers {
		var issue issueResponse
		path := repoPath(subject) + "/issues/" + strconv.Itoa(number)
		if err := c.getJSON(ctx, path, nil, &issue); err != nil {
			return nil, err
		}
		out = append(out, commit.Issue{
			Number: issue.Number,
			Title:  issue.Title,
			Body:   truncateRunes(issue.Body, maxBodyChars),
			State:  issue.State,
			URL:    issue.HTMLURL,
		})
	}
	return out, nil
}

// IssueReferences extracts up to three distinct "#N" references from text
// in order of appearance.
func IssueReferences(text string) []int {
	var out []int
	for _, match := range issueRefPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n <= 0 || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
		if len(out) == maxIssueReferences {
			break
		}
	}
	return out
}

func ordered(subsets []commit.Subset) []commit.Subset {
	out := make([]commit.Subset, 0, len(subsets))
	for _, subset := range commit.Subsets() {
		if slices.Contains(subsets, subset) {
			out = append(out, subset)
		}
	}
	return out
}
