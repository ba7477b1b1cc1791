package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	ProtocolHttp = "http"
	ProtocolGrpc = "grpc"
)

// config is the shape of telemetry.json5, spans and seat metrics share
// one collector.
type config struct {
	// "http" (default) or "grpc"
	Protocol string            `json:"protocol"`
	Endpoint string            `json:"endpoint"`
	Headers  map[string]string `json:"headers"`
	// seconds between metric exports, defaults to 15
	ExportInterval int `json:"export_interval"`
}

func (c config) protocol() (string, error) {
	switch c.Protocol {
	case "", ProtocolHttp:
		return ProtocolHttp, nil
	case ProtocolGrpc:
		return ProtocolGrpc, nil
	}
	return "", fmt.Errorf("unknown otlp protocol %q, expected %q or %q", c.Protocol, ProtocolHttp, ProtocolGrpc)
}

func (c config) exportInterval() time.Duration {
	if c.ExportInterval <= 0 {
		return time.Second * 15
	}
	return time.Second * time.Duration(c.ExportInterval)
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

func newSpanExporter(ctx context.Context, c config) (trace.SpanExporter, error) {
	protocol, err := c.protocol()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	if protocol == ProtocolGrpc {
		return otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(c.Endpoint),
			otlptracegrpc.WithHeaders(c.Headers),
		)
	}
	return otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(c.Endpoint),
		otlptracehttp.WithHeaders(c.Headers),
	)
}

func newMetricExporter(ctx context.Context, c config) (metric.Exporter, error) {
	protocol, err := c.protocol()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	if protocol == ProtocolGrpc {
		return otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(c.Endpoint),
			otlpmetricgrpc.WithHeaders(c.Headers),
		)
	}
	return otlpmetrichttp.New(
		ctx,
		otlpmetrichttp.WithEndpointURL(c.Endpoint),
		otlpmetrichttp.WithHeaders(c.Headers),
	)
}

func newProviders(ctx context.Context, serviceName string, c config) (*trace.TracerProvider, *metric.MeterProvider, error) {
	r, err := newResource(serviceName)
	if err != nil {
		return nil, nil, err
	}
	spans, err := newSpanExporter(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	metrics, err := newMetricExporter(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	protocol, _ := c.protocol()
	slog.Info(
		"telemetry exporters initialized",
		"protocol", protocol,
		"endpoint", c.Endpoint,
		"headers", len(c.Headers) > 0,
		"export_interval", c.exportInterval(),
	)

	tp := trace.NewTracerProvider(
		trace.WithBatcher(spans),
		trace.WithResource(r),
	)
	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metrics, metric.WithInterval(c.exportInterval()))),
		metric.WithResource(r),
	)
	return tp, mp, nil
}
