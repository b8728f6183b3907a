package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jihwanw/big-dragons-never-die/internal/config"
)

const meterName = "megacap"

// OTelProviders holds the OpenTelemetry providers of one run. The zero
// value is a disabled set whose methods are no-ops.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Registry       *promclient.Registry

	traceFile   *os.File
	metricsFile string
	logger      *slog.Logger
}

// InitializeOTel installs global tracer and meter providers. Spans are
// written to the configured trace file, metrics are collected in a
// private Prometheus registry and dumped to the metrics file on Shutdown.
func InitializeOTel(cfg config.TelemetryConfig, runID string, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = slog.Default()
	}
	providers := &OTelProviders{logger: logger, metricsFile: cfg.MetricsFile}
	if !cfg.Enabled {
		return providers, nil
	}

	ctx := context.Background()
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(config.AppVersion),
		attribute.String("megacap.run_id", runID),
	)

	if err := providers.initializeTracing(cfg, res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := providers.initializeMetrics(res); err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("trace_file", cfg.TraceFile),
		slog.String("metrics_file", cfg.MetricsFile))
	return providers, nil
}

// initializeTracing sets up span export to the trace file, or discards
// spans when no file is configured
func (p *OTelProviders) initializeTracing(cfg config.TelemetryConfig, res *resource.Resource) error {
	var out io.Writer = io.Discard
	if cfg.TraceFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.TraceFile), 0755); err != nil {
			return fmt.Errorf("failed to create trace directory: %w", err)
		}
		f, err := os.Create(cfg.TraceFile)
		if err != nil {
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		p.traceFile = f
		out = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	p.TracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(p.TracerProvider)
	return nil
}

// initializeMetrics sets up a Prometheus reader on a private registry
func (p *OTelProviders) initializeMetrics(res *resource.Resource) error {
	p.Registry = promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(p.Registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	p.MeterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(p.MeterProvider)
	return nil
}

// WriteMetrics writes the gathered metrics in the Prometheus text format
func (p *OTelProviders) WriteMetrics(w io.Writer) error {
	if p == nil || p.Registry == nil {
		return nil
	}
	families, err := p.Registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// dumpMetrics writes the metrics file if one is configured
func (p *OTelProviders) dumpMetrics() error {
	if p.metricsFile == "" || p.Registry == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.metricsFile), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	f, err := os.Create(p.metricsFile)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	if err := p.WriteMetrics(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Shutdown dumps metrics, flushes spans and closes the trace file
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if err := p.dumpMetrics(); err != nil {
		errs = append(errs, err)
	}
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if p.traceFile != nil {
		if err := p.traceFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trace file: %w", err))
		}
		p.traceFile = nil
	}
	if len(errs) > 0 && p.logger != nil {
		p.logger.WarnContext(ctx, "OpenTelemetry shutdown incomplete", slog.Int("errors", len(errs)))
	}
	return errors.Join(errs...)
}
