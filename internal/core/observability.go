package core

import (
	"context"
	"time"
)

// Logger is the minimal structured logging interface used by the engine.
// Arguments follow the key/value convention of log/slog and zap's sugared
// logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. It is the default when no logger is
// configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder observes service operation outcomes. Observe covers the
// request plumbing; ObserveCompletion counts finished validations by clinical
// urgency and final status, the figures clinical operators actually watch.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	ObserveCompletion(ctx context.Context, urgency ClinicalUrgency, status ValidationStatus)
}

// TraceSpan finalizes a single traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}
