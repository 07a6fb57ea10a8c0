package logging

import (
	"context"
	"log/slog"

	"bluestar/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldStage is the standardized structured logging key for workflow stage names.
	FieldStage = "stage"
	// FieldRunID is the standardized structured logging key for run correlation identifiers.
	FieldRunID = "run_id"
	// FieldRepo is the standardized structured logging key for the repository of a run.
	FieldRepo = "repo"
	// FieldSHA is the standardized structured logging key for the commit revision of a run.
	FieldSHA = "sha"
	// FieldEventType classifies lifecycle log lines (stage_start, stage_complete, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator next step on warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldDecisionType names the decision a routing or policy log line records.
	FieldDecisionType = "decision_type"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if subject, ok := services.SubjectFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRepo, subject.Repo), slog.String(FieldSHA, shortSHA(subject.SHA)))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

// WithStage is a convenience wrapper over services.WithStage so callers that
// only import logging can tag stage context.
func WithStage(ctx context.Context, stage string) context.Context {
	return services.WithStage(ctx, stage)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
