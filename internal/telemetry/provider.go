// Package telemetry wires the collector's own metrics and traces: an
// OpenTelemetry MeterProvider exported through Prometheus and, optionally,
// OTLP, and a TracerProvider exporting tick spans over OTLP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
)

// Config holds OpenTelemetry configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	// InstanceID distinguishes runs of the same service (service.instance.id)
	InstanceID string
	// OTLPEndpoint enables the OTLP gRPC metric and trace exporters when set
	OTLPEndpoint string
	// ExportInterval for OTLP (default: 30s)
	ExportInterval time.Duration
	// Registry receives the Prometheus exporter's collectors. A fresh
	// registry is created when nil.
	Registry *promclient.Registry
	Logger   *zap.Logger
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		ExportInterval: 30 * time.Second,
	}
}

// Provider owns the MeterProvider and its readers.
type Provider struct {
	config         *Config
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	registry       *promclient.Registry
	logger         *zap.Logger
}

// NewProvider creates the MeterProvider and installs it globally so
// otel.Meter picks it up.
func NewProvider(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		return nil, errors.New("telemetry config is required")
	}
	if config.Logger == nil {
		config.Logger, _ = zap.NewProduction()
	}
	if config.Registry == nil {
		config.Registry = promclient.NewRegistry()
	}
	if config.ExportInterval == 0 {
		config.ExportInterval = 30 * time.Second
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(config.ServiceName),
		semconv.ServiceVersionKey.String(config.ServiceVersion),
		attribute.String("ktelemetry.component", config.ServiceName),
	}
	if config.InstanceID != "" {
		attrs = append(attrs, semconv.ServiceInstanceIDKey.String(config.InstanceID))
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithProcessPID(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{
		config:   config,
		registry: config.Registry,
		logger:   config.Logger.Named("telemetry"),
	}
	if err := p.initMetrics(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	if err := p.initTracing(ctx, res); err != nil {
		_ = p.meterProvider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	otel.SetMeterProvider(p.meterProvider)
	otel.SetTracerProvider(p.tracerProvider)
	return p, nil
}

// initTracing creates the tracer provider. Without an OTLP endpoint spans
// are recorded but never exported.
func (p *Provider) initTracing(ctx context.Context, res *resource.Resource) error {
	if p.config.OTLPEndpoint == "" {
		p.tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		return nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
	)
	return nil
}

func (p *Provider) initMetrics(ctx context.Context, res *resource.Resource) error {
	promExporter, err := prometheus.New(prometheus.WithRegisterer(p.registry))
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	}

	if p.config.OTLPEndpoint != "" {
		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(p.config.ExportInterval),
		)))
		p.logger.Info("Exporting self-metrics over OTLP", zap.String("endpoint", p.config.OTLPEndpoint))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	return nil
}

// Registry returns the Prometheus registry the exporter writes to.
func (p *Provider) Registry() *promclient.Registry {
	return p.registry
}

// MeterProvider returns the SDK provider.
func (p *Provider) MeterProvider() *sdkmetric.MeterProvider {
	return p.meterProvider
}

// TracerProvider returns the SDK tracer provider.
func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	return p.tracerProvider
}

// Shutdown flushes and stops every reader and span processor
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
