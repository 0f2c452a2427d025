// Package logging assembles structured slog loggers and formatting helpers used
// across scenesub.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with job IDs, pipeline stages, and request IDs automatically. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
