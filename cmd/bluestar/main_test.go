package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"bluestar/internal/config"
	"bluestar/internal/infer"
	"bluestar/internal/review"
	"bluestar/internal/testsupport"
)

const testSHA = "abc1234def5678abc1234def5678abc1234def56"

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// newGitHubServer serves one commit for octo/widgets; every other path 404s.
func newGitHubServer(t *testing.T) *httptest.Server {
	t.Helper()
	commitPath := "/repos/octo/widgets/commits/"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, commitPath) {
			http.NotFound(w, r)
			return
		}
		if strings.Contains(r.Header.Get("Accept"), "diff") {
			_, _ = w.Write([]byte("diff --git a/cache.go b/cache.go\n+func Warm() {}\n"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sha":      testSHA,
			"html_url": "https://github.com/octo/widgets/commit/" + testSHA,
			"commit": map[string]any{
				"message": "Add cache warming\n\nPrime the widget cache on boot.",
				"author": map[string]any{
					"name":  "Dana",
					"email": "dana@example.com",
					"date":  "2026-01-02T03:04:05Z",
				},
			},
			"stats": map[string]any{"additions": 12, "deletions": 2},
			"files": []map[string]any{
				{"filename": "cache.go", "status": "modified", "additions": 12, "deletions": 2},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newChatServer answers chat completions by matching the system prompt.
func newChatServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var system string
		for _, m := range req.Messages {
			if m.Role == "system" {
				system = m.Content
			}
		}
		var content string
		switch system {
		case infer.AnalyzePrompt:
			content = `{"category":"performance","summary":"Warms the widget cache at startup.","impact":"Faster first requests.","key_points":["cache warmed on boot"],"completeness":0.9}`
		case infer.SynthesizePrompt:
			content = `{"title":"Warming the Widget Cache","summary":"Startup now primes the cache.","tags":["go","performance"],"body":[{"type":"paragraph","content":"Widgets now load faster after a restart."}]}`
		default:
			http.Error(w, "unexpected prompt", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}, "finish_reason": "stop"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, opts ...testsupport.ConfigOption) (*config.Config, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, opts...)
	return cfg, testsupport.WriteConfig(t, cfg)
}

func TestGenerateAutopilotSavesLocally(t *testing.T) {
	var llmCalls atomic.Int32
	gh := newGitHubServer(t)
	chat := newChatServer(t, &llmCalls)
	cfg, path := writeTestConfig(t,
		testsupport.WithGitHubURL(gh.URL),
		testsupport.WithLLMURL(chat.URL),
		testsupport.WithLocalFormat("markdown"),
	)

	out, err := runCLI(t, "--config", path, "generate",
		"--repo", "octo/widgets", "--sha", "abc1234", "--autopilot", "--target", "local")
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Warming the Widget Cache") {
		t.Fatalf("expected title in summary, got:\n%s", out)
	}
	if !strings.Contains(out, "save") {
		t.Fatalf("expected save outcome, got:\n%s", out)
	}
	if got := llmCalls.Load(); got != 2 {
		t.Fatalf("expected analyze and synthesize calls, got %d", got)
	}

	matches, err := filepath.Glob(filepath.Join(cfg.Paths.OutputDir, "*.md"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one saved draft, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read draft: %v", err)
	}
	if !strings.Contains(string(data), "Widgets now load faster") {
		t.Fatalf("draft missing body:\n%s", data)
	}

	store := testsupport.MustOpenRunStore(t, cfg)
	runs, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(runs))
	}
	run := runs[0]
	if run.Status != "save" || run.Repo != "octo/widgets" || run.Location != matches[0] {
		t.Fatalf("unexpected run record: %+v", run)
	}
	if len(run.Errors) != 1 {
		t.Fatalf("expected the project context failure to be recorded, got %v", run.Errors)
	}
}

func TestGenerateDiscardWithPresetTarget(t *testing.T) {
	var llmCalls atomic.Int32
	gh := newGitHubServer(t)
	chat := newChatServer(t, &llmCalls)
	cfg, path := writeTestConfig(t, testsupport.WithGitHubURL(gh.URL), testsupport.WithLLMURL(chat.URL))

	out, err := runCLI(t, "-c", path, "generate",
		"--repo", "octo/widgets", "--sha", "abc1234", "--autopilot", "--target", "discard")
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "discard") {
		t.Fatalf("expected discard outcome, got:\n%s", out)
	}
	entries, _ := os.ReadDir(cfg.Paths.OutputDir)
	if len(entries) != 0 {
		t.Fatalf("discard must not write drafts, found %d entries", len(entries))
	}
}

func TestGenerateFailureReturnsError(t *testing.T) {
	var llmCalls atomic.Int32
	gh := newGitHubServer(t)
	chat := newChatServer(t, &llmCalls)
	_, path := writeTestConfig(t, testsupport.WithGitHubURL(gh.URL), testsupport.WithLLMURL(chat.URL))

	out, err := runCLI(t, "-c", path, "generate",
		"--repo", "octo/missing", "--sha", "abc1234", "--autopilot", "--target", "local")
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("expected errRunFailed, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "fetch_commit") {
		t.Fatalf("expected failed stage in summary, got:\n%s", out)
	}
	if llmCalls.Load() != 0 {
		t.Fatalf("inference must not run after a fetch failure")
	}
}

func TestGenerateRequiresTerminalForReview(t *testing.T) {
	_, path := writeTestConfig(t)

	_, err := runCLI(t, "-c", path, "generate", "--repo", "octo/widgets", "--sha", "abc1234")
	if err == nil || !strings.Contains(err.Error(), "interactive terminal") {
		t.Fatalf("expected interactive terminal error, got %v", err)
	}
}

func TestReviewersSelection(t *testing.T) {
	tests := []struct {
		name      string
		opts      generateOptions
		wantErr   bool
		preset    string
		autopilot bool
	}{
		{name: "autopilot with target", opts: generateOptions{autopilot: true, target: "notion"}, preset: "notion", autopilot: true},
		{name: "autopilot defaults to local", opts: generateOptions{autopilot: true}, preset: "local", autopilot: true},
		{name: "manual review needs terminal", opts: generateOptions{target: "local"}, wantErr: true},
		{name: "manual target needs terminal", opts: generateOptions{}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			presenter, decider, err := reviewers(strings.NewReader(""), &bytes.Buffer{}, tc.opts)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("reviewers: %v", err)
			}
			if _, ok := presenter.(review.Autopilot); ok != tc.autopilot {
				t.Fatalf("presenter = %T, autopilot %v", presenter, tc.autopilot)
			}
			preset, ok := decider.(review.Preset)
			if !ok {
				t.Fatalf("decider = %T, want review.Preset", decider)
			}
			if preset.Target != tc.preset {
				t.Fatalf("preset target = %q want %q", preset.Target, tc.preset)
			}
		})
	}
}

func TestRunsListAndShow(t *testing.T) {
	var llmCalls atomic.Int32
	gh := newGitHubServer(t)
	chat := newChatServer(t, &llmCalls)
	cfg, path := writeTestConfig(t, testsupport.WithGitHubURL(gh.URL), testsupport.WithLLMURL(chat.URL))

	out, err := runCLI(t, "-c", path, "runs", "list")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if !strings.Contains(out, "No runs recorded") {
		t.Fatalf("expected empty listing, got:\n%s", out)
	}

	if out, err := runCLI(t, "-c", path, "generate",
		"--repo", "octo/widgets", "--sha", "abc1234", "--autopilot"); err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}

	out, err = runCLI(t, "-c", path, "runs", "list")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if !strings.Contains(out, "octo/widgets@abc1234") {
		t.Fatalf("expected run in listing, got:\n%s", out)
	}

	store := testsupport.MustOpenRunStore(t, cfg)
	runs, err := store.List(context.Background(), 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("list runs: %v (%d)", err, len(runs))
	}

	out, err = runCLI(t, "-c", path, "runs", "show", runs[0].ID)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	for _, want := range []string{"validate_input", "synthesize_content", "save", "Warming the Widget Cache"} {
		if !strings.Contains(out, want) {
			t.Fatalf("runs show missing %q:\n%s", want, out)
		}
	}

	if _, err := runCLI(t, "-c", path, "runs", "show", "does-not-exist"); err == nil {
		t.Fatal("expected error for unknown run")
	}

	out, err = runCLI(t, "-c", path, "runs", "prune", "--older-than", "1h")
	if err != nil {
		t.Fatalf("runs prune: %v", err)
	}
	if !strings.Contains(out, "Removed 0 run(s)") {
		t.Fatalf("expected nothing pruned, got:\n%s", out)
	}
}

func TestCheckReportsReadiness(t *testing.T) {
	_, path := writeTestConfig(t)

	out, err := runCLI(t, "-c", path, "check")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	for _, want := range []string{"github", "llm", "local", "ghost"} {
		if !strings.Contains(out, want) {
			t.Fatalf("check output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckFailsWithoutInferenceKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := testsupport.NewConfig(t)
	cfg.LLM.APIKey = ""
	t.Setenv("HOME", t.TempDir())
	path := testsupport.WriteConfig(t, cfg)

	out, err := runCLI(t, "-c", path, "check")
	if err == nil {
		t.Fatalf("expected check failure, got:\n%s", out)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	t.Setenv("BLUESTAR_NTFY_TOPIC", "")
	_, path := writeTestConfig(t)

	out, err := runCLI(t, "-c", path, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(out, "not configured") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
