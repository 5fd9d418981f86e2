// Package telemetry wires OpenTelemetry tracing and metrics. Metrics are
// exported through a Prometheus registry served at /metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/go-narrate/internal/config"
)

const instrumentationName = "github.com/example/go-narrate"

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Provider owns the tracer and meter providers of the process.
type Provider struct {
	tracer  *sdktrace.TracerProvider
	meter   *sdkmetric.MeterProvider
	handler http.Handler
}

// SetupOption adjusts Setup.
type SetupOption func(*setupOptions)

type setupOptions struct {
	traceWriter io.Writer
}

// WithTraceWriter sets where the stdout exporter writes spans.
func WithTraceWriter(w io.Writer) SetupOption {
	return func(o *setupOptions) { o.traceWriter = w }
}

// Setup builds the providers. Spans are only exported when cfg.Enabled is
// set; metrics are always collected.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *slog.Logger, opts ...SetupOption) (*Provider, error) {
	o := setupOptions{traceWriter: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "narrate"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
			attribute.String("narrate.component", "cli"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, cfg, res, o.traceWriter, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	return &Provider{
		tracer:  tp,
		meter:   mp,
		handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

func newTracerProvider(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource, w io.Writer, logger *slog.Logger) (*sdktrace.TracerProvider, error) {
	exporter := strings.ToLower(strings.TrimSpace(cfg.TraceExporter))
	if !cfg.Enabled {
		exporter = ExporterNone
	}

	switch exporter {
	case "", ExporterNone:
		return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		logger.Info("telemetry initialized", slog.String("exporter", ExporterStdout))
		return sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		), nil
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		logger.Info("telemetry initialized",
			slog.String("exporter", ExporterOTLP),
			slog.String("endpoint", cfg.OTLPEndpoint),
		)
		return sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		), nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q (want none|stdout|otlp)", cfg.TraceExporter)
	}
}

func (p *Provider) Tracer() trace.Tracer { return p.tracer.Tracer(instrumentationName) }

func (p *Provider) Meter() metric.Meter { return p.meter.Meter(instrumentationName) }

// Handler serves the Prometheus exposition format.
func (p *Provider) Handler() http.Handler { return p.handler }

// Shutdown flushes pending spans and metrics.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(p.meter.Shutdown(ctx), p.tracer.Shutdown(ctx))
}
