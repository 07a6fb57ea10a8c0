package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"bluestar/internal/services/retry"
)

// geminiClient wraps the official genai SDK.
type geminiClient struct {
	models *genai.Models
	model  string
	policy retry.Policy
}

func newGeminiClient(ctx context.Context, cfg Config, o options) (*geminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &geminiClient{models: cli.Models, model: cfg.Model, policy: o.policy}, nil
}

func (g *geminiClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt, userPrompt, err := validatePrompts("llm complete", systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	full := systemPrompt + "\n\n" + userPrompt
	temperature := float32(0.3)

	var content string
	err = g.policy.Do(ctx, "llm complete", retryGemini, func(int) error {
		resp, err := g.models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json", Temperature: &temperature},
		)
		if err != nil {
			return asStatusError(err)
		}
		if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return &emptyContentError{Op: "llm complete", Snippet: "<no candidates>"}
		}
		var b strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			return &emptyContentError{Op: "llm complete", FinishReason: string(resp.Candidates[0].FinishReason)}
		}
		content = text
		return nil
	})
	if err != nil {
		return "", markError(err)
	}
	return content, nil
}

// asStatusError converts SDK API errors into the shared status error so the
// retry classifier and marker mapping treat every provider the same way.
func asStatusError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return fmt.Errorf("gemini: %w", &retry.StatusError{StatusCode: apiErr.Code, Body: apiErr.Message})
	}
	return err
}

func retryGemini(err error) (time.Duration, bool) {
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		return 0, true
	}
	return retryEmpty(err)
}
