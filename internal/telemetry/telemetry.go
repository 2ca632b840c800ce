// Package telemetry wires rb's counters and reviewer spans to OpenTelemetry.
//
// Nothing is exported unless RB_OTEL_ENABLED=true. RB_OTEL_STDOUT=true prints
// spans and metrics for local debugging. An OTLP/HTTP endpoint from the
// standard OTEL_EXPORTER_OTLP_* variables receives metrics only.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "rb"

// Settings selects the exporters Init installs.
type Settings struct {
	Enabled bool
	// Stdout prints spans and metrics. Spans are only recorded in this mode.
	Stdout bool
	// MetricsEndpoint is an OTLP/HTTP host:port. Empty disables OTLP.
	MetricsEndpoint string
	// Interval is how often metrics are pushed to the OTLP endpoint.
	Interval time.Duration
}

// SettingsFromEnv reads Settings from the process environment.
func SettingsFromEnv() Settings {
	s := Settings{
		Enabled:         os.Getenv("RB_OTEL_ENABLED") == "true",
		Stdout:          os.Getenv("RB_OTEL_STDOUT") == "true",
		MetricsEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
		Interval:        30 * time.Second,
	}
	if s.MetricsEndpoint == "" {
		s.MetricsEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return s
}

// Enabled reports whether RB_OTEL_ENABLED is set.
func Enabled() bool {
	return SettingsFromEnv().Enabled
}

var shutdownFns []func(context.Context) error

// Init installs global providers for s. A disabled Settings installs no-op
// providers so instruments created later cost nothing.
func Init(ctx context.Context, s Settings, version string) error {
	if !s.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	if s.Stdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("telemetry: stdout spans: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res), sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		shutdownFns = append(shutdownFns, tp.Shutdown)
	} else {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
	}

	readers, err := metricReaders(ctx, s)
	if err != nil {
		return err
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)
	return nil
}

func metricReaders(ctx context.Context, s Settings) ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader
	if s.Stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: stdout metrics: %w", err)
		}
		// A CLI run is short; the final flush happens in Shutdown.
		readers = append(readers, sdkmetric.NewPeriodicReader(exp))
	}
	if s.MetricsEndpoint != "" {
		exp, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(s.MetricsEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("telemetry: otlp metrics %s: %w", s.MetricsEndpoint, err)
		}
		interval := s.Interval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval)))
	}
	return readers, nil
}

// Tracer returns the tracer for an instrumentation scope.
func Tracer(scope string) trace.Tracer {
	return otel.Tracer(scope)
}

// Meter returns the meter for an instrumentation scope.
func Meter(scope string) metric.Meter {
	return otel.Meter(scope)
}

// Shutdown flushes pending spans and metrics.
func Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range shutdownFns {
		errs = append(errs, fn(ctx))
	}
	shutdownFns = nil
	return errors.Join(errs...)
}
