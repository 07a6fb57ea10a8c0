// Package retry implements the bounded exponential backoff shared by the HTTP
// collaborators (inference providers, GitHub, Ghost, Notion).
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAttempts  = 5
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 10 * time.Second
)

// Policy bounds how often and how long an operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Sleeper replaces the timer wait; tests use it to avoid real delays.
	Sleeper func(time.Duration)
}

// DefaultPolicy returns five attempts with 1s doubling backoff capped at 10s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultAttempts, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay}
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
	Header     http.Header
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// NewStatusError captures the response status, body, and Retry-After hint.
func NewStatusError(resp *http.Response, body []byte) *StatusError {
	retryAfter, _ := ParseRetryAfter(resp.Header.Get("Retry-After"))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: retryAfter,
		Header:     resp.Header.Clone(),
	}
}

// Classifier decides whether err is worth another attempt. A positive delay
// overrides the computed backoff (still capped by MaxDelay).
type Classifier func(err error) (delay time.Duration, retry bool)

// Do runs fn until it succeeds, the classifier declines, the context ends, or
// attempts run out. The final error is returned unwrapped when only one
// attempt was made so callers keep precise error types.
func (p Policy) Do(ctx context.Context, op string, classify Classifier, fn func(attempt int) error) error {
	if classify == nil {
		classify = Transient
	}
	attempts := p.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt >= attempts || ctx.Err() != nil ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		hint, retry := classify(err)
		if !retry {
			return err
		}
		delay := p.Backoff(attempt)
		if hint > 0 {
			delay = p.capDelay(hint)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}
	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

// Transient retries 408, 429, 5xx, and network timeouts, honouring Retry-After.
func Transient(err error) (time.Duration, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return statusErr.RetryAfter, true
		default:
			return 0, false
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return 0, true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return 0, true
	}
	return 0, false
}

// Backoff returns the delay before the attempt following attempt (1-based):
// base, base*2, base*4, ... capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base < 0 {
		base = 0
	}
	if base == 0 {
		return 0
	}
	maxDelay := p.maxDelay()
	if attempt <= 0 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return DefaultMaxDelay
}

func (p Policy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if maxDelay := p.maxDelay(); delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.Sleeper != nil {
		p.Sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ParseRetryAfter accepts both delta-seconds and HTTP-date forms.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
