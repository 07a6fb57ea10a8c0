package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bluestar/internal/services/retry"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 8192
)

// anthropicClient talks to the Anthropic messages API. JSON output is
// requested through the system prompt and recovered with DecodeLLMJSON.
type anthropicClient struct {
	cfg        Config
	httpClient *http.Client
	policy     retry.Policy
}

func newAnthropicClient(cfg Config, o options) *anthropicClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1/messages"
	}
	return &anthropicClient{cfg: cfg, httpClient: o.httpClient, policy: o.policy}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *anthropicClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt, userPrompt, err := validatePrompts("llm complete", systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	payload := anthropicRequest{
		Model:       c.cfg.Model,
		MaxTokens:   anthropicMaxTokens,
		System:      systemPrompt + "\n\nRespond with a single JSON object and nothing else.",
		Messages:    []anthropicMessage{{Role: "user", Content: userPrompt}},
		Temperature: 0.3,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm request: encode body: %w", err)
	}

	var content string
	err = c.policy.Do(ctx, "llm complete", retryEmpty, func(int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
		if err != nil {
			return fmt.Errorf("llm request: new request: %w", err)
		}
		req.Header.Set("x-api-key", c.cfg.APIKey)
		req.Header.Set("anthropic-version", anthropicVersion)
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("llm request: %w", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("llm request: read body: %w", err)
		}
		if resp.StatusCode >= http.StatusMultipleChoices {
			return retry.NewStatusError(resp, body)
		}
		var parsed anthropicResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("llm request: decode response: %w", err)
		}
		var b strings.Builder
		for _, block := range parsed.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			content = text
			return nil
		}
		return &emptyContentError{Op: "llm complete", FinishReason: parsed.StopReason, Snippet: summarizePayloadSnippet(string(body))}
	})
	if err != nil {
		return "", markError(err)
	}
	return content, nil
}
