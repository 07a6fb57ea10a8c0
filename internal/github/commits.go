package github

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"bluestar/internal/commit"
)

// diffTruncationMarker is appended when a diff exceeds the configured limit.
const diffTruncationMarker = "\n... [diff truncated]"

type commitResponse struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
	Files []struct {
		Filename  string `json:"filename"`
		Status    string `json:"status"`
		Additions int    `json:"additions"`
		Deletions int    `json:"deletions"`
	} `json:"files"`
}

// FetchCommit retrieves the commit metadata and unified diff for subject.
// Short SHAs are resolved by the API; the returned facts carry the full SHA.
// Project context is not fetched here.
func (c *Client) FetchCommit(ctx context.Context, subject commit.Subject) (commit.Facts, error) {
	base := repoPath(subject) + "/commits/" + subject.SHA

	var payload commitResponse
	if err := c.getJSON(ctx, base, nil, &payload); err != nil {
		return commit.Facts{}, err
	}
	sha := payload.SHA
	if sha == "" {
		sha = subject.SHA
	}

	diffPath := repoPath(subject) + "/commits/" + sha
	diff, err := c.get(ctx, diffPath, nil, acceptDiff)
	if err != nil {
		return commit.Facts{}, err
	}
	text, truncated := truncateDiff(string(diff), c.maxDiffChars)

	author := strings.TrimSpace(payload.Commit.Author.Name)
	if author == "" && payload.Author != nil {
		author = payload.Author.Login
	}
	facts := commit.Facts{
		SHA:           strings.ToLower(sha),
		Message:       strings.TrimSpace(payload.Commit.Message),
		Author:        author,
		AuthorEmail:   payload.Commit.Author.Email,
		Date:          payload.Commit.Author.Date,
		URL:           payload.HTMLURL,
		Diff:          text,
		DiffTruncated: truncated,
		Additions:     payload.Stats.Additions,
		Deletions:     payload.Stats.Deletions,
	}
	facts.Files = make([]commit.FileChange, 0, len(payload.Files))
	for _, file := range payload.Files {
		facts.Files = append(facts.Files, commit.FileChange{
			Path:      file.Filename,
			Status:    file.Status,
			Additions: file.Additions,
			Deletions: file.Deletions,
		})
	}
	c.logger.Debug("commit fetched",
		"sha", facts.SHA,
		"files", len(facts.Files),
		"diff_chars", len(facts.Diff),
		"diff_truncated", truncated,
	)
	return facts, nil
}

func truncateDiff(diff string, limit int) (string, bool) {
	if limit <= 0 || len(diff) <= limit {
		return diff, false
	}
	cut := diff[:limit]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + diffTruncationMarker, true
}

func repoPath(subject commit.Subject) string {
	return "repos/" + subject.Owner() + "/" + subject.Name()
}
