package logging

import (
	"context"
	"log/slog"

	"scenesub/internal/services"
)

const (
	// FieldComponent names the subsystem emitting a record.
	FieldComponent = "component"
	// FieldJobID identifies a subtitle job.
	FieldJobID = "job_id"
	// FieldStage names the pipeline stage (probe, scenes, transcribe, compose, write).
	FieldStage = "stage"
	// FieldRequestID correlates records with an HTTP request.
	FieldRequestID = "request_id"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with fields derived from ctx.
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
