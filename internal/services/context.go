package services

import "context"

type contextKey string

const (
	runIDKey   contextKey = "run_id"
	stageKey   contextKey = "stage"
	subjectKey contextKey = "subject"
)

// WithRunID annotates context with the run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the workflow stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// Subject identifies the commit a run is working on.
type Subject struct {
	Repo string
	SHA  string
}

// WithSubject annotates context with the repository and revision of the run.
func WithSubject(ctx context.Context, repo, sha string) context.Context {
	if repo == "" && sha == "" {
		return ctx
	}
	return context.WithValue(ctx, subjectKey, Subject{Repo: repo, SHA: sha})
}

// SubjectFromContext returns the run subject if present.
func SubjectFromContext(ctx context.Context) (Subject, bool) {
	v, ok := ctx.Value(subjectKey).(Subject)
	if !ok || (v.Repo == "" && v.SHA == "") {
		return Subject{}, false
	}
	return v, true
}
