package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bluestar/internal/services"
	"bluestar/internal/services/retry"
)

const defaultHTTPTimeout = 120 * time.Second

// Completer issues a single JSON-only completion. Implementations own their
// retry policy; callers never retry.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config captures the runtime settings required to talk to a provider.
type Config struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	// Referer and Title are sent as OpenRouter attribution headers.
	Referer string
	Title   string
}

type options struct {
	httpClient *http.Client
	policy     retry.Policy
}

// Option customizes a provider client.
type Option func(*options)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the default retry policy (5 attempts, 1s..10s).
func WithRetryPolicy(policy retry.Policy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// New builds the Completer for cfg.Provider.
func New(ctx context.Context, cfg Config, opts ...Option) (Completer, error) {
	cfg = cfg.trimmed()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: llm: api key required for provider %q", services.ErrConfiguration, cfg.Provider)
	}
	o := options{policy: retry.DefaultPolicy()}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	o.httpClient = &http.Client{Timeout: timeout}
	for _, opt := range opts {
		opt(&o)
	}
	switch cfg.Provider {
	case "openai", "openrouter", "":
		return newChatClient(cfg, o), nil
	case "claude", "anthropic":
		return newAnthropicClient(cfg, o), nil
	case "gemini":
		return newGeminiClient(ctx, cfg, o)
	default:
		return nil, fmt.Errorf("%w: llm: unsupported provider %q", services.ErrConfiguration, cfg.Provider)
	}
}

func (c Config) trimmed() Config {
	return Config{
		Provider:       strings.ToLower(strings.TrimSpace(c.Provider)),
		APIKey:         strings.TrimSpace(c.APIKey),
		BaseURL:        strings.TrimSpace(c.BaseURL),
		Model:          strings.TrimSpace(c.Model),
		TimeoutSeconds: c.TimeoutSeconds,
		Referer:        strings.TrimSpace(c.Referer),
		Title:          strings.TrimSpace(c.Title),
	}
}

// HealthCheck issues a fast ping to verify the key and model are usable.
func HealthCheck(ctx context.Context, c Completer) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func validatePrompts(op, systemPrompt, userPrompt string) (string, string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" {
		return "", "", fmt.Errorf("%s: system prompt required", op)
	}
	if userPrompt == "" {
		return "", "", fmt.Errorf("%s: user prompt required", op)
	}
	return systemPrompt, userPrompt, nil
}

// markError tags transport failures with the marker the workflow reports.
func markError(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %w", services.ErrAuth, err)
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", services.ErrRateLimited, err)
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
	var empty *emptyContentError
	if errors.As(err, &empty) {
		return fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	return err
}

type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf(
		"%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op,
		e.FinishReason,
		e.Refusal,
		e.Snippet,
	)
}

// retryEmpty extends the transient classifier so blank completions get
// another attempt.
func retryEmpty(err error) (time.Duration, bool) {
	var empty *emptyContentError
	if errors.As(err, &empty) {
		return 0, true
	}
	return retry.Transient(err)
}
