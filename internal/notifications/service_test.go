package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bluestar/internal/config"
	"bluestar/internal/notifications"
	"bluestar/internal/services"
	"bluestar/internal/workflow"
)

type captured struct {
	title    string
	body     string
	tags     string
	priority string
	click    string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			click:    r.Header.Get("Click"),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func serviceFor(url string) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRun(context.Background(), workflow.Summary{Disposition: workflow.DispositionSave}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNotifyRunFormatsDispositions(t *testing.T) {
	tests := []struct {
		name           string
		summary        workflow.Summary
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
		expectClick    string
	}{
		{
			name: "published",
			summary: workflow.Summary{
				Repo: "octo/widgets", SHA: "abc1234def", Title: "Retry budgets",
				Disposition: workflow.DispositionPublish, Target: "ghost", Location: "https://blog.example.com/retry",
			},
			expectTitle:   "BlueStar - Published",
			expectMessage: "Published to ghost: Retry budgets\nhttps://blog.example.com/retry",
			expectTags:    "bluestar,publish,ghost",
			expectClick:   "https://blog.example.com/retry",
		},
		{
			name: "saved",
			summary: workflow.Summary{
				Repo: "octo/widgets", SHA: "abc1234def", Title: "Retry budgets",
				Disposition: workflow.DispositionSave, Target: "local", Location: "/out/post.html",
			},
			expectTitle:   "BlueStar - Draft Saved",
			expectMessage: "Saved draft: Retry budgets\n/out/post.html",
			expectTags:    "bluestar,save",
		},
		{
			name:           "discarded",
			summary:        workflow.Summary{Repo: "octo/widgets", SHA: "abc1234def", Disposition: workflow.DispositionDiscard},
			expectTitle:    "BlueStar - Discarded",
			expectMessage:  "Discarded draft for octo/widgets@abc1234",
			expectTags:     "bluestar,discard",
			expectPriority: "low",
		},
		{
			name: "failed",
			summary: workflow.Summary{
				Repo: "octo/widgets", SHA: "abc1234", Disposition: workflow.DispositionError,
				FailedStage: workflow.StageFetchCommit, ErrorKind: services.KindNotFound,
				Errors: []string{"Project context unavailable", "commit not found"},
			},
			expectTitle:    "BlueStar - Error",
			expectMessage:  "Run failed for octo/widgets@abc1234 during fetch_commit: commit not found",
			expectTags:     "bluestar,error,alert",
			expectPriority: "high",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, got := newCaptureServer(t, http.StatusOK)
			if err := serviceFor(srv.URL).NotifyRun(context.Background(), tc.summary); err != nil {
				t.Fatalf("NotifyRun: %v", err)
			}
			if len(*got) != 1 {
				t.Fatalf("requests = %d", len(*got))
			}
			req := (*got)[0]
			if req.title != tc.expectTitle || req.body != tc.expectMessage || req.tags != tc.expectTags {
				t.Fatalf("unexpected notification: %+v", req)
			}
			if req.priority != tc.expectPriority || req.click != tc.expectClick {
				t.Fatalf("priority=%q click=%q", req.priority, req.click)
			}
		})
	}
}

func TestNotifyRunSurfacesServerErrors(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusForbidden)
	err := serviceFor(srv.URL).NotifyRun(context.Background(), workflow.Summary{Disposition: workflow.DispositionSave})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestTestNotification(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK)
	if err := serviceFor(srv.URL).TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if len(*got) != 1 || (*got)[0].title != "BlueStar - Test" {
		t.Fatalf("unexpected requests: %+v", *got)
	}
}
