// Package telemetry configures OpenTelemetry tracing for the application.
package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/km-arc/go-spiral/framework/config"
	"github.com/km-arc/go-spiral/framework/errs"
)

// InstrumentationName names the tracer handed out by Provider.Tracer.
const InstrumentationName = "github.com/km-arc/go-spiral"

// Provider owns the process tracer provider.
type Provider struct {
	trace.TracerProvider
	shutdown func(context.Context) error
}

// Option customises NewTracerProvider.
type Option func(*options)

type options struct {
	writer    io.Writer
	processor sdktrace.SpanProcessor
}

// WithWriter sends stdout exporter output to w instead of os.Stdout.
func WithWriter(w io.Writer) Option { return func(o *options) { o.writer = w } }

// WithSpanProcessor adds a span processor, e.g. a tracetest.SpanRecorder.
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(o *options) { o.processor = p }
}

// NewTracerProvider builds the provider described by cfg and installs it as
// the global one. A disabled config yields a noop provider.
func NewTracerProvider(cfg config.TelemetryConfig, env string, opts ...Option) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{
			TracerProvider: noop.NewTracerProvider(),
			shutdown:       func(context.Context) error { return nil },
		}, nil
	}

	o := options{writer: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("deployment.environment", env),
	)

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	switch cfg.Exporter {
	case "", "none":
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(o.writer))
		if err != nil {
			return nil, errs.Wrap(errs.Config, "telemetry.NewTracerProvider", cfg.Exporter, err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	default:
		return nil, errs.New(errs.Config, "telemetry.NewTracerProvider", cfg.Exporter, "unknown trace exporter")
	}
	if o.processor != nil {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(o.processor))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	return &Provider{TracerProvider: tp, shutdown: tp.Shutdown}, nil
}

// Tracer returns the framework tracer.
func (p *Provider) Tracer() trace.Tracer { return p.TracerProvider.Tracer(InstrumentationName) }

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error { return p.shutdown(ctx) }
