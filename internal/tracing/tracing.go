// Package tracing sets up the OpenTelemetry trace pipeline. Spans are
// exported over OTLP gRPC; the engine creates one root span per
// investigation run.
package tracing

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/moolen/inquest/internal/logging"
)

// Provider owns the OpenTelemetry TracerProvider for the process.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	logger         *logging.Logger
	enabled        bool
}

// Config holds tracing configuration.
type Config struct {
	Enabled     bool
	Endpoint    string // OTLP gRPC endpoint (e.g., "otel-collector:4317")
	TLSCAPath   string // Path to CA certificate for TLS verification (optional)
	TLSInsecure bool   // Skip TLS certificate verification (insecure)
	Version     string // Service version reported on the trace resource
}

// NewProvider creates the tracing provider and installs it as the global
// OpenTelemetry TracerProvider. When disabled it returns a no-op provider so
// callers never need to branch.
func NewProvider(cfg Config) (*Provider, error) {
	logger := logging.GetLogger("tracing")

	if !cfg.Enabled {
		logger.Info("Tracing disabled")
		return &Provider{logger: logger, enabled: false}, nil
	}

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tracing enabled but endpoint not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var dialOptions []grpc.DialOption
	var otlpOptions []otlptracegrpc.Option

	if cfg.TLSCAPath != "" || cfg.TLSInsecure {
		var tlsConfig *tls.Config

		if cfg.TLSInsecure {
			tlsConfig = &tls.Config{
				InsecureSkipVerify: true,
				MinVersion:         tls.VersionTLS12,
			}
			logger.Info("TLS enabled for tracing with certificate verification disabled (insecure mode)")
		} else {
			caCert, err := os.ReadFile(cfg.TLSCAPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA certificate: %w", err)
			}

			certPool := x509.NewCertPool()
			if !certPool.AppendCertsFromPEM(caCert) {
				return nil, fmt.Errorf("failed to append CA certificate to pool")
			}

			tlsConfig = &tls.Config{
				RootCAs:    certPool,
				MinVersion: tls.VersionTLS12,
			}
			logger.Info("TLS enabled for tracing with CA from: %s", cfg.TLSCAPath)
		}

		creds := credentials.NewTLS(tlsConfig)
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(creds))
	} else {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
		otlpOptions = append(otlpOptions, otlptracegrpc.WithInsecure())
		logger.Info("TLS disabled for tracing (insecure mode)")
	}

	otlpOptions = append(otlpOptions,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(dialOptions...),
	)

	exporter, err := otlptracegrpc.New(ctx, otlpOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName("inquest"),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Runs are low-volume relative to request traffic, so sample everything.
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)

	logger.Info("Tracing initialized with endpoint: %s", cfg.Endpoint)

	return &Provider{
		tracerProvider: tracerProvider,
		logger:         logger,
		enabled:        true,
	}, nil
}

// Shutdown flushes any buffered spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.enabled {
		return nil
	}

	p.logger.Info("Shutting down tracing provider...")
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		p.logger.Error("Error shutting down tracer provider: %v", err)
		return err
	}
	p.logger.Info("Tracing provider stopped")
	return nil
}

// GetTracer returns a tracer for instrumenting code.
func (p *Provider) GetTracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// IsEnabled returns whether tracing is enabled.
func (p *Provider) IsEnabled() bool {
	return p.enabled
}
