// Package tracer wraps OpenTelemetry so the connection manager can open one
// span per statement without depending on the SDK directly.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts statement spans.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is the subset of trace.Span the manager needs.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code codes.Code, description string)
	End()
}

// NoopTracer is used when tracing is not configured.
type NoopTracer struct{}

// StartSpan returns ctx unchanged and a span that records nothing.
func (NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttributes(...attribute.KeyValue) {}
func (noopSpan) RecordError(error)                   {}
func (noopSpan) SetStatus(codes.Code, string)        {}
func (noopSpan) End()                                {}

// OtelTracer adapts an OpenTelemetry tracer.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer creates a Tracer backed by t, which must not be nil.
func NewOtelTracer(t trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: t}
}

// StartSpan starts a client span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) SetAttributes(attrs ...attribute.KeyValue) { s.span.SetAttributes(attrs...) }
func (s otelSpan) RecordError(err error)                     { s.span.RecordError(err) }
func (s otelSpan) SetStatus(code codes.Code, desc string)    { s.span.SetStatus(code, desc) }
func (s otelSpan) End()                                      { s.span.End() }

// Statement describes one executed statement, following the OpenTelemetry
// database semantic conventions where they apply.
type Statement struct {
	SQL          string
	System       string // mysql, postgresql, sqlite
	Role         string // master or replica
	Attempts     int
	RowsAffected int64
	Duration     time.Duration
	Err          error
}

// Record writes the statement attributes and final status onto span.
func Record(span Span, st *Statement) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", st.System),
		attribute.String("db.statement", st.SQL),
		attribute.String("db.operation", Operation(st.SQL)),
		attribute.String("db.quarry.role", st.Role),
		attribute.Float64("db.duration_ms", float64(st.Duration.Microseconds())/1000.0),
	}
	if st.Attempts > 1 {
		attrs = append(attrs, attribute.Int("db.quarry.attempts", st.Attempts))
	}
	if st.RowsAffected > 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", st.RowsAffected))
	}
	span.SetAttributes(attrs...)

	if st.Err != nil {
		span.RecordError(st.Err)
		span.SetStatus(codes.Error, st.Err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// Operation returns the leading SQL keyword of query in upper case,
// or UNKNOWN when it is not a recognised statement.
func Operation(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	switch op := strings.ToUpper(fields[0]); op {
	case "SELECT", "INSERT", "UPDATE", "DELETE", "REPLACE",
		"SAVEPOINT", "ROLLBACK", "RELEASE", "BEGIN", "COMMIT":
		return op
	case "WITH":
		return "SELECT"
	default:
		return "UNKNOWN"
	}
}
