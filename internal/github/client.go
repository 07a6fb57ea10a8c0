package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"bluestar/internal/logging"
	"bluestar/internal/services"
	"bluestar/internal/services/retry"
)

const (
	defaultBaseURL      = "https://api.github.com"
	defaultUserAgent    = "bluestar"
	defaultTimeout      = 30 * time.Second
	defaultCacheSize    = 256
	defaultMaxDiffChars = 50000
	apiVersion          = "2022-11-28"

	acceptJSON = "application/vnd.github+json"
	acceptDiff = "application/vnd.github.v3.diff"

	maxErrorBody = 4096
)

// Config describes the GitHub client configuration.
type Config struct {
	Token        string
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	CacheSize    int
	MaxDiffChars int
	HTTPClient   *http.Client
	// Retry overrides the default backoff; a zero value uses retry.DefaultPolicy.
	Retry  retry.Policy
	Logger *slog.Logger
}

// Quota is the most recent rate limit snapshot reported by the API.
type Quota struct {
	Limit     int
	Remaining int
	Reset     time.Time
	Known     bool
}

// Exhausted reports whether the snapshot shows no requests left.
func (q Quota) Exhausted() bool {
	return q.Known && q.Remaining <= 0
}

// Client wraps the GitHub REST API.
type Client struct {
	token        string
	userAgent    string
	baseURL      *url.URL
	http         *http.Client
	policy       retry.Policy
	maxDiffChars int
	cache        *lru.Cache[string, []byte]
	logger       *slog.Logger

	mu    sync.Mutex
	quota Quota
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("github: parse base url: %w", err)
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("github: create cache: %w", err)
	}
	policy := cfg.Retry
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	maxDiff := cfg.MaxDiffChars
	if maxDiff <= 0 {
		maxDiff = defaultMaxDiffChars
	}
	return &Client{
		token:        strings.TrimSpace(cfg.Token),
		userAgent:    userAgent,
		baseURL:      baseURL,
		http:         httpClient,
		policy:       policy,
		maxDiffChars: maxDiff,
		cache:        cache,
		logger:       logging.NewComponentLogger(cfg.Logger, "github"),
	}, nil
}

// Quota returns the last rate limit snapshot.
func (c *Client) Quota() Quota {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quota
}

// Authenticated reports whether a token is configured.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// getJSON fetches path and decodes the JSON body into dst.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	body, err := c.get(ctx, path, query, acceptJSON)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("github: decode %s: %w", path, err)
	}
	return nil
}

// get issues a cached, retried GET and marks failures with the service
// taxonomy.
func (c *Client) get(ctx context.Context, path string, query url.Values, accept string) ([]byte, error) {
	endpoint := c.baseURL.JoinPath(strings.Split(strings.Trim(path, "/"), "/")...)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	key := accept + " " + endpoint.String()
	if body, ok := c.cache.Get(key); ok {
		return body, nil
	}

	var body []byte
	err := c.policy.Do(ctx, "github: GET "+path, c.classify, func(attempt int) error {
		var err error
		body, err = c.do(ctx, endpoint.String(), accept)
		if err != nil && attempt > 1 {
			c.logger.Debug("github request retry failed",
				logging.String("path", path),
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
		}
		return err
	})
	if err != nil {
		return nil, markError(err)
	}
	c.cache.Add(key, body)
	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github: request failed: %w", err)
	}
	defer resp.Body.Close()
	c.recordQuota(resp.Header)

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, retry.NewStatusError(resp, body)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("github: read response: %w", err)
	}
	return body, nil
}

func (c *Client) recordQuota(header http.Header) {
	limit, okLimit := headerInt(header, "X-RateLimit-Limit")
	remaining, okRemaining := headerInt(header, "X-RateLimit-Remaining")
	if !okLimit || !okRemaining {
		return
	}
	quota := Quota{Limit: limit, Remaining: remaining, Known: true}
	if reset, ok := headerInt(header, "X-RateLimit-Reset"); ok {
		quota.Reset = time.Unix(int64(reset), 0)
	}
	c.mu.Lock()
	c.quota = quota
	c.mu.Unlock()
	if remaining == 0 {
		logging.WarnWithContext(c.logger, "github rate limit exhausted", "rate_limit",
			logging.Int("limit", limit),
			logging.String("reset", quota.Reset.Format(time.RFC3339)),
			logging.String(logging.FieldErrorHint, "set GITHUB_TOKEN for a higher quota"),
			logging.String(logging.FieldImpact, "requests wait until the quota resets"),
		)
	}
}

// classify extends the transient classifier with GitHub's primary rate
// limit, which answers 403 with an exhausted quota and a reset timestamp.
func (c *Client) classify(err error) (time.Duration, bool) {
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) && rateLimited(statusErr) {
		if statusErr.RetryAfter > 0 {
			return statusErr.RetryAfter, true
		}
		if reset, ok := headerInt(statusErr.Header, "X-RateLimit-Reset"); ok {
			return time.Until(time.Unix(int64(reset), 0)) + time.Second, true
		}
		return 0, true
	}
	return retry.Transient(err)
}

func rateLimited(statusErr *retry.StatusError) bool {
	if statusErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return statusErr.StatusCode == http.StatusForbidden &&
		statusErr.Header.Get("X-RateLimit-Remaining") == "0"
}

// markError tags transport failures with the marker the workflow reports.
func markError(err error) error {
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusNotFound, statusErr.StatusCode == http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %w", services.ErrNotFound, err)
		case rateLimited(statusErr):
			return fmt.Errorf("%w: %w", services.ErrRateLimited, err)
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %w", services.ErrAuth, err)
		case statusErr.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", services.ErrTransient, err)
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

func headerInt(header http.Header, key string) (int, bool) {
	if header == nil {
		return 0, false
	}
	value := strings.TrimSpace(header.Get(key))
	if value == "" {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}
