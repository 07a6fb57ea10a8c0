package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"bluestar/internal/commit"
	"bluestar/internal/logging"
)

const readmeSummaryChars = 1000

// configFiles lists the primary build files in preference order with the
// project type each one implies.
var configFiles = []struct {
	name        string
	projectType string
}{
	{"package.json", "javascript/node"},
	{"pyproject.toml", "python"},
	{"requirements.txt", "python"},
	{"pom.xml", "java/maven"},
	{"build.gradle", "java/gradle"},
	{"Cargo.toml", "rust"},
	{"go.mod", "go"},
	{"composer.json", "php"},
}

type repoResponse struct {
	Description   string   `json:"description"`
	Language      string   `json:"language"`
	Topics        []string `json:"topics"`
	Stars         int      `json:"stargazers_count"`
	DefaultBranch string   `json:"default_branch"`
	Homepage      string   `json:"homepage"`
}

type contentResponse struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// FetchProjectContext gathers the optional background bundle for subject:
// repository metadata, a README summary at the revision, and the primary
// config file. Only a metadata failure is reported; README and config file
// lookups degrade silently.
func (c *Client) FetchProjectContext(ctx context.Context, subject commit.Subject, sha string) (*commit.ProjectContext, error) {
	base := repoPath(subject)
	var repo repoResponse
	if err := c.getJSON(ctx, base, nil, &repo); err != nil {
		return nil, fmt.Errorf("repository metadata: %w", err)
	}
	project := &commit.ProjectContext{
		Description:   strings.TrimSpace(repo.Description),
		Language:      repo.Language,
		Topics:        repo.Topics,
		Stars:         repo.Stars,
		DefaultBranch: repo.DefaultBranch,
		Homepage:      repo.Homepage,
		ProjectType:   "unknown",
	}
	ref := url.Values{"ref": {sha}}

	var readme contentResponse
	if err := c.getJSON(ctx, base+"/readme", ref, &readme); err != nil {
		c.logger.Debug("readme unavailable", logging.Error(err))
	} else if text, ok := decodeContent(readme); ok {
		project.ReadmeSummary = truncateRunes(text, readmeSummaryChars)
	}

	var root []contentResponse
	if err := c.getJSON(ctx, base+"/contents", ref, &root); err != nil {
		c.logger.Debug("repository root listing unavailable", logging.Error(err))
		return project, nil
	}
	present := make(map[string]bool, len(root))
	for _, entry := range root {
		if entry.Type == "file" {
			present[entry.Name] = true
		}
	}
	for _, candidate := range configFiles {
		if present[candidate.name] {
			project.ConfigFile = candidate.name
			project.ProjectType = candidate.projectType
			break
		}
	}
	return project, nil
}

func decodeContent(content contentResponse) (string, bool) {
	if content.Type != "file" || content.Content == "" {
		return "", false
	}
	if content.Encoding != "" && content.Encoding != "base64" {
		return content.Content, true
	}
	raw := strings.NewReplacer("\n", "", "\r", "").Replace(content.Content)
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
