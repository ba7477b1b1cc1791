package testutil

import (
	"log/slog"
	"os"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	setupOnce sync.Once
	recorder  *tracetest.SpanRecorder
)

// SetupTelemetry installs a debug slog handler and a tracer provider that
// keeps finished spans in memory. Package level tracers bind to the first
// provider they see, so the provider is installed once per test binary
// and shared by every test.
func SetupTelemetry(t testing.TB) *tracetest.SpanRecorder {
	t.Helper()
	setupOnce.Do(func() {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
		recorder = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(recorder),
		))
	})
	return recorder
}

// EndedSpans returns the finished spans called `name`.
func EndedSpans(recorder *tracetest.SpanRecorder, name string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}
