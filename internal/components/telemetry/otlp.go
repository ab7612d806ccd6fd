package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter is one otlp destination. An empty endpoint disables it.
type Exporter struct {
	// Protocol is "grpc" or "http", defaults to "grpc".
	Protocol string            `json:"protocol"`
	Endpoint string            `json:"endpoint"`
	Headers  map[string]string `json:"headers"`
}

func (e Exporter) enabled() bool {
	return e.Endpoint != ""
}

func (e Exporter) useHttp() (bool, error) {
	switch e.Protocol {
	case "", "grpc":
		return false, nil
	case "http":
		return true, nil
	}
	return false, fmt.Errorf("unknown otlp protocol %q", e.Protocol)
}

type Config struct {
	Traces  Exporter `json:"traces"`
	Metrics Exporter `json:"metrics"`
	// TraceRatio samples a fraction of the query traces, 0 means all of them.
	TraceRatio float64 `json:"trace_ratio"`
	// MetricIntervalSeconds defaults to 10.
	MetricIntervalSeconds int `json:"metric_interval_seconds"`
}

// Telemetry is what Setup installed, Shutdown flushes whatever is buffered.
type Telemetry struct {
	shutdown []func(context.Context) error
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// Setup points the otel globals at the configured exporters. Anything left
// unconfigured keeps the default no-op provider, so instrumented code never
// has to check.
func Setup(ctx context.Context, serviceName string, config Config) (Telemetry, error) {
	var out Telemetry
	if !config.Traces.enabled() && !config.Metrics.enabled() {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return out, fmt.Errorf("otel resource: %w", err)
	}

	if config.Traces.enabled() {
		exporter, err := newSpanExporter(ctx, config.Traces)
		if err != nil {
			return out, fmt.Errorf("trace exporter: %w", err)
		}
		sampler := sdktrace.AlwaysSample()
		if config.TraceRatio > 0 {
			sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.TraceRatio))
		}
		provider := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		)
		otel.SetTracerProvider(provider)
		out.shutdown = append(out.shutdown, provider.Shutdown)
		slog.Info("exporting traces", "endpoint", config.Traces.Endpoint, "protocol", config.Traces.Protocol)
	}

	if config.Metrics.enabled() {
		exporter, err := newMetricExporter(ctx, config.Metrics)
		if err != nil {
			return out, fmt.Errorf("metric exporter: %w", err)
		}
		interval := time.Duration(config.MetricIntervalSeconds) * time.Second
		if interval <= 0 {
			interval = 10 * time.Second
		}
		provider := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(provider)
		out.shutdown = append(out.shutdown, provider.Shutdown)
		slog.Info("exporting metrics", "endpoint", config.Metrics.Endpoint, "protocol", config.Metrics.Protocol)
	}

	return out, nil
}

func newSpanExporter(ctx context.Context, e Exporter) (sdktrace.SpanExporter, error) {
	http, err := e.useHttp()
	if err != nil {
		return nil, err
	}
	if http {
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(e.Endpoint),
			otlptracehttp.WithHeaders(e.Headers),
		)
	}
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpointURL(e.Endpoint),
		otlptracegrpc.WithHeaders(e.Headers),
	)
}

func newMetricExporter(ctx context.Context, e Exporter) (sdkmetric.Exporter, error) {
	http, err := e.useHttp()
	if err != nil {
		return nil, err
	}
	if http {
		return otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpointURL(e.Endpoint),
			otlpmetrichttp.WithHeaders(e.Headers),
		)
	}
	return otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpointURL(e.Endpoint),
		otlpmetricgrpc.WithHeaders(e.Headers),
	)
}
