package tracer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer() (*OtelTracer, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return NewOtelTracer(tp.Tracer("quarry-test")), exporter
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestNoopTracer(t *testing.T) {
	ctx := context.Background()
	got, span := NoopTracer{}.StartSpan(ctx, "quarry.query")

	assert.Equal(t, ctx, got)
	Record(span, &Statement{SQL: "SELECT 1", Err: errors.New("boom")})
	span.End()
}

func TestRecord_Success(t *testing.T) {
	tr, exporter := newTestTracer()

	_, span := tr.StartSpan(context.Background(), "quarry.execute")
	Record(span, &Statement{
		SQL:          "UPDATE users SET name = ? WHERE id = ?",
		System:       "mysql",
		Role:         "master",
		Attempts:     3,
		RowsAffected: 1,
		Duration:     1500 * time.Microsecond,
	})
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "quarry.execute", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	attrs := attrMap(spans[0].Attributes)
	assert.Equal(t, "UPDATE", attrs["db.operation"].AsString())
	assert.Equal(t, "master", attrs["db.quarry.role"].AsString())
	assert.Equal(t, int64(3), attrs["db.quarry.attempts"].AsInt64())
	assert.Equal(t, int64(1), attrs["db.rows_affected"].AsInt64())
	assert.InDelta(t, 1.5, attrs["db.duration_ms"].AsFloat64(), 0.001)
}

func TestRecord_Error(t *testing.T) {
	tr, exporter := newTestTracer()

	_, span := tr.StartSpan(context.Background(), "quarry.query")
	Record(span, &Statement{SQL: "SELECT * FROM missing", Attempts: 1, Err: errors.New("no such table")})
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "no such table", spans[0].Status.Description)
	assert.Len(t, spans[0].Events, 1)

	_, hasAttempts := attrMap(spans[0].Attributes)["db.quarry.attempts"]
	assert.False(t, hasAttempts)
}

func TestOperation(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM users":           "SELECT",
		"  select 1":                    "SELECT",
		"WITH t AS (SELECT 1) SELECT *": "SELECT",
		"INSERT INTO users (a) VALUES":  "INSERT",
		"REPLACE INTO users":            "REPLACE",
		"SAVEPOINT trans2":              "SAVEPOINT",
		"SHOW TABLES":                   "UNKNOWN",
		"":                              "UNKNOWN",
	}
	for query, want := range tests {
		assert.Equal(t, want, Operation(query), query)
	}
}
