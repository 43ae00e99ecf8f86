// Package telemetry provides the Logger/Metrics/Tracer abstraction wired
// through every capability context so that a capability call can log, trace,
// and count without depending on a concrete observability backend.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured, capability-scoped logging.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter/timer/gauge helpers for engine instrumentation:
// threads spawned, tokens decoded, rows streamed, bytes bridged.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation across capability calls (DB query spans,
// AI compute spans, WAC compose spans).
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight trace span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// Telemetry bundles the three observability axes so engine components can
// accept a single value instead of three.
type Telemetry struct {
	Logger  Logger
	Metrics Metrics
	Tracer  Tracer
}

// Noop returns a Telemetry whose every axis discards its input, suitable for
// tests and for embedders that opt out of observability entirely.
func Noop() Telemetry {
	return Telemetry{Logger: NewNoopLogger(), Metrics: NewNoopMetrics(), Tracer: NewNoopTracer()}
}
