package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopLogger(t *testing.T) {
	var logger Logger = &NoopLogger{}

	logger.Debug("statement", "sql", "SELECT 1")
	logger.Info("statement")
	logger.Warn("reconnect", "attempt", 2)
	logger.Error("statement failed", "error", "boom")
}

func TestSlogAdapterLevels(t *testing.T) {
	tests := []struct {
		name  string
		call  func(Logger)
		level string
		field string
	}{
		{"debug", func(l Logger) { l.Debug("statement", "sql", "SELECT 1") }, "DEBUG", "sql="},
		{"info", func(l Logger) { l.Info("connected", "driver", "mysql") }, "INFO", "driver=mysql"},
		{"warn", func(l Logger) { l.Warn("reconnect", "attempt", 2) }, "WARN", "attempt=2"},
		{"error", func(l Logger) { l.Error("statement failed", "error", "gone away") }, "ERROR", "error="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
			tt.call(NewSlogAdapter(slog.New(handler)))

			out := buf.String()
			assert.Contains(t, out, "level="+tt.level)
			assert.Contains(t, out, tt.field)
		})
	}
}

func TestSlogAdapterJSON(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := NewSlogAdapter(slog.New(handler))

	logger.Debug("statement",
		"sql", "SELECT * FROM users WHERE id = :Bind_1_id_",
		"success", true)

	out := buf.String()
	assert.Contains(t, out, `"msg":"statement"`)
	assert.Contains(t, out, `"sql":"SELECT * FROM users WHERE id = :Bind_1_id_"`)
	assert.Contains(t, out, `"success":true`)
}

func TestSlogAdapterNilUsesDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	NewSlogAdapter(nil).Info("quarry connected", "role", "master")
	assert.Contains(t, buf.String(), "role=master")
}

func BenchmarkSlogAdapter(b *testing.B) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))

	for i := 0; i < b.N; i++ {
		logger.Info("statement", "sql", "SELECT * FROM users", "rows", 100)
	}
}
