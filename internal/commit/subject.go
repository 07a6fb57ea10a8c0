package commit

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	repoSegmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	shaPattern         = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
)

// Subject identifies the unit of work for one run.
type Subject struct {
	// Repo is the normalized owner/name identifier.
	Repo string
	// SHA is the lowercase hex revision. It may be abbreviated until the
	// commit source resolves it.
	SHA string
}

// Owner returns the repository owner segment.
func (s Subject) Owner() string {
	owner, _, _ := strings.Cut(s.Repo, "/")
	return owner
}

// Name returns the repository name segment.
func (s Subject) Name() string {
	_, name, _ := strings.Cut(s.Repo, "/")
	return name
}

// ShortSHA returns the first seven characters of the revision.
func (s Subject) ShortSHA() string {
	if len(s.SHA) > 7 {
		return s.SHA[:7]
	}
	return s.SHA
}

func (s Subject) String() string {
	return s.Repo + "@" + s.ShortSHA()
}

// ParseSubject validates and normalizes a repository identifier and revision.
// The repository may be given as owner/name or as a github.com URL, with or
// without a trailing .git.
func ParseSubject(repo, sha string) (Subject, error) {
	normalizedRepo, err := NormalizeRepo(repo)
	if err != nil {
		return Subject{}, err
	}
	normalizedSHA, err := NormalizeSHA(sha)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Repo: normalizedRepo, SHA: normalizedSHA}, nil
}

// NormalizeRepo reduces a repository reference to owner/name.
func NormalizeRepo(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("repository identifier is required")
	}
	if strings.Contains(value, "://") {
		parsed, err := url.Parse(value)
		if err != nil {
			return "", fmt.Errorf("repository URL %q: %w", value, err)
		}
		host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
		if host != "github.com" {
			return "", fmt.Errorf("repository URL %q: only github.com is supported", value)
		}
		value = parsed.Path
	} else if strings.HasPrefix(strings.ToLower(value), "github.com/") {
		value = value[len("github.com/"):]
	}
	value = strings.Trim(value, "/")
	value = strings.TrimSuffix(value, ".git")

	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return "", fmt.Errorf("repository identifier %q must have the form owner/repo", value)
	}
	for _, part := range parts {
		if !repoSegmentPattern.MatchString(part) {
			return "", fmt.Errorf("repository identifier %q contains invalid characters", value)
		}
	}
	return parts[0] + "/" + parts[1], nil
}

// NormalizeSHA lowercases a revision and checks it is 7 to 40 hex characters.
func NormalizeSHA(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", errors.New("commit sha is required")
	}
	if !shaPattern.MatchString(value) {
		return "", fmt.Errorf("commit sha %q must be 7 to 40 hexadecimal characters", value)
	}
	return value, nil
}
