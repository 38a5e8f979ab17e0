// Package telemetry wires OpenTelemetry tracing for the job system.
//
// Configuration comes from the standard environment variables:
//
//	OTEL_ENABLED                    - Enable/disable tracing (default: false)
//	OTEL_SERVICE_NAME               - Service name (default: jobsystem)
//	OTEL_SERVICE_VERSION            - Service version (default: unknown)
//	OTEL_EXPORTER_OTLP_ENDPOINT     - OTLP collector endpoint
//	OTEL_EXPORTER_OTLP_PROTOCOL     - grpc or http/protobuf (default: grpc)
//	OTEL_EXPORTER_OTLP_HEADERS      - Extra headers, e.g. Authorization=Bearer xxx
//	OTEL_EXPORTER_OTLP_INSECURE     - Plaintext connection (default: false)
//	OTEL_TRACES_SAMPLER             - Sampler type (default: always_on)
//	OTEL_TRACES_SAMPLER_ARG         - Sampler argument, e.g. a ratio
//	OTEL_RESOURCE_ATTRIBUTES        - Additional resource attributes
//
// When tracing is disabled the global provider stays a no-op, so the
// per-job spans opened by the workers cost almost nothing.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer returned by Tracer.
const InstrumentationName = "github.com/playground-engine/jobsystem"

var (
	globalConfig *Config
	configOnce   sync.Once
)

// ShutdownFunc flushes and stops the TracerProvider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs a global TracerProvider exporting over OTLP. With
// OTEL_ENABLED unset it does nothing and returns a no-op shutdown.
func Init(ctx context.Context, host HostInfo) (ShutdownFunc, error) {
	cfg := loadConfig()
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}
	tp, err := newProvider(ctx, cfg, host, sdktrace.WithBatcher(exporter))
	if err != nil {
		return noopShutdown, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// newProvider builds a TracerProvider with the host resource and sampler.
func newProvider(ctx context.Context, cfg *Config, host HostInfo, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	res, err := buildResource(ctx, cfg, host)
	if err != nil {
		return nil, err
	}
	opts = append(opts, sdktrace.WithResource(res), sdktrace.WithSampler(newSampler(cfg)))
	return sdktrace.NewTracerProvider(opts...), nil
}

// Tracer returns the job system tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Enabled returns whether OpenTelemetry tracing is enabled.
func Enabled() bool {
	return loadConfig().Enabled
}

// GetConfig returns the current telemetry configuration.
func GetConfig() *Config {
	return loadConfig()
}

func loadConfig() *Config {
	configOnce.Do(func() {
		globalConfig = LoadFromEnv()
	})
	return globalConfig
}
