package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"seatwatch/lib/configutil"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
)

// Tracer returns a named tracer from the global provider, it is safe to
// call before Setup, spans become no-ops until a provider is installed.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// InitSlog installs the default slog handler, writing to stderr.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// searches up the filesystem from the cwd to find a file
// called telemetry.json5, once found it will then use it
// as a config to setup telemetry.
// returns os.ErrNotExist if no such file could be found.
func SetupFromEnv(ctx context.Context, serviceName string) error {
	cfg, err := configutil.ReadRecursively[config]("telemetry.json5")
	if err != nil {
		return err
	}
	return Setup(ctx, serviceName, cfg)
}

func Setup(ctx context.Context, serviceName string, cfg config) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	tp, mp, err := newProviders(ctx, serviceName, cfg)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tp)
	tracerProvider = tp
	otel.SetMeterProvider(mp)
	meterProvider = mp
	return nil
}

// Shutdown flushes and stops the providers installed by Setup, it is a
// no-op if Setup was never called.
func Shutdown(ctx context.Context) error {
	var errlist []error
	if tracerProvider != nil {
		err := tracerProvider.Shutdown(ctx)
		if err != nil {
			errlist = append(errlist, err)
		}
	}
	if meterProvider != nil {
		err := meterProvider.Shutdown(ctx)
		if err != nil {
			errlist = append(errlist, err)
		}
	}
	return errors.Join(errlist...)
}
