package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bluestar/internal/config"
	"bluestar/internal/workflow"
)

const userAgent = "BlueStar-Go/0.1.0"

const defaultServer = "https://ntfy.sh/"

// Service defines the notification surface used by the CLI and workflow.
type Service interface {
	NotifyRun(ctx context.Context, summary workflow.Summary) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	endpoint := topic
	if !strings.Contains(topic, "://") {
		endpoint = defaultServer + strings.TrimPrefix(topic, "/")
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
	click    string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

// NotifyRun formats the terminal disposition of a run.
func (n *ntfyService) NotifyRun(ctx context.Context, summary workflow.Summary) error {
	return n.send(ctx, runPayload(summary))
}

func runPayload(summary workflow.Summary) payload {
	subject := summary.Repo
	if sha := summary.SHA; len(sha) >= 7 {
		subject += "@" + sha[:7]
	}
	title := strings.TrimSpace(summary.Title)
	if title == "" {
		title = subject
	}

	switch summary.Disposition {
	case workflow.DispositionPublish:
		return payload{
			title:   "BlueStar - Published",
			message: fmt.Sprintf("Published to %s: %s\n%s", summary.Target, title, summary.Location),
			tags:    []string{"bluestar", "publish", summary.Target},
			click:   summary.Location,
		}
	case workflow.DispositionSave:
		return payload{
			title:   "BlueStar - Draft Saved",
			message: fmt.Sprintf("Saved draft: %s\n%s", title, summary.Location),
			tags:    []string{"bluestar", "save"},
		}
	case workflow.DispositionDiscard:
		return payload{
			title:    "BlueStar - Discarded",
			message:  fmt.Sprintf("Discarded draft for %s", subject),
			tags:     []string{"bluestar", "discard"},
			priority: "low",
		}
	default:
		var builder strings.Builder
		builder.WriteString("Run failed for ")
		builder.WriteString(subject)
		if summary.FailedStage != "" {
			builder.WriteString(" during ")
			builder.WriteString(string(summary.FailedStage))
		}
		builder.WriteString(": ")
		if len(summary.Errors) > 0 {
			builder.WriteString(summary.Errors[len(summary.Errors)-1])
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "BlueStar - Error",
			message:  builder.String(),
			tags:     []string{"bluestar", "error", "alert"},
			priority: "high",
		}
	}
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "BlueStar - Test",
		message:  "Notification system test",
		tags:     []string{"bluestar", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}
	if data.click != "" {
		req.Header.Set("Click", data.click)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRun(context.Context, workflow.Summary) error { return nil }
func (noopService) TestNotification(context.Context) error            { return nil }
