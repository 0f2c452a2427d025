package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithJobID tags ctx with the subtitle job it is serving.
func WithJobID(ctx context.Context, id string) context.Context {
	return withString(ctx, jobIDKey, id)
}

// JobIDFromContext returns the job tagged by WithJobID.
func JobIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, jobIDKey)
}

// WithStage tags ctx with the pipeline stage (probe, scenes, transcribe, ...).
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

// StageFromContext returns the stage tagged by WithStage.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

// WithRequestID tags ctx with the HTTP request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the id tagged by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}

// Empty values leave ctx untouched so an outer tag is never masked.
func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
