package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bluestar/internal/article"
	"bluestar/internal/commit"
	"bluestar/internal/services"
	"bluestar/internal/services/retry"
)

// Target names for the publish destinations.
const (
	TargetGhost   = "ghost"
	TargetNotion  = "notion"
	TargetLocal   = "local"
	TargetDiscard = "discard"
)

// Metadata describes the run a post came from.
type Metadata struct {
	Subject  commit.Subject
	SHA      string
	Category commit.ChangeType
	// When stamps local filenames; zero means now.
	When time.Time
}

// Result reports where a post ended up.
type Result struct {
	Target string
	ID     string
	URL    string
	Path   string
}

// Location returns the URL or path, whichever is set.
func (r Result) Location() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Path
}

// Publisher sends a post to a remote platform.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, post article.Post, meta Metadata) (Result, error)
}

// Saver writes a post to local storage.
type Saver interface {
	Save(ctx context.Context, post article.Post, meta Metadata) (Result, error)
}

// markError tags transport failures with the marker the workflow reports.
func markError(err error) error {
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %w", services.ErrAuth, err)
		case statusErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", services.ErrRateLimited, err)
		case statusErr.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", services.ErrTransient, err)
		case statusErr.StatusCode == http.StatusBadRequest, statusErr.StatusCode == http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %w", services.ErrValidation, err)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", services.ErrTimeout, err)
	}
	if _, retryable := retry.Transient(err); retryable {
		return fmt.Errorf("%w: %w", services.ErrTimeout, err)
	}
	return err
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
