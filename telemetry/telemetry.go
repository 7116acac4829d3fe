// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package telemetry configures the OpenTelemetry tracer and meter providers
// used by a service, along with the propagator and a Prometheus scrape endpoint.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/z5labs/keel/lifecycle"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Exporter names where finished spans are sent.
type Exporter string

const (
	// ExporterNone records spans, so trace ids exist, but exports nothing.
	ExporterNone   Exporter = "none"
	ExporterStdout Exporter = "stdout"
	ExporterOTLP   Exporter = "otlp"
)

// UnmarshalText implements the [encoding.TextUnmarshaler] interface.
func (e *Exporter) UnmarshalText(b []byte) error {
	*e = Exporter(strings.ToLower(strings.TrimSpace(string(b))))
	return nil
}

// Config is the otel section of the service config.
type Config struct {
	ServiceName    string   `config:"service_name"`
	ServiceVersion string   `config:"service_version"`
	TracesExporter Exporter `config:"traces_exporter"`

	// OTLPEndpoint is a URL such as http://collector:4317. An http scheme
	// disables transport security.
	OTLPEndpoint string `config:"otlp_endpoint"`

	MetricsEnabled bool `config:"metrics_enabled"`
}

// UnknownExporterError is returned for an unsupported traces exporter.
type UnknownExporterError struct {
	Exporter Exporter
}

func (e UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown traces exporter: %q", string(e.Exporter))
}

// ErrMissingOTLPEndpoint is returned when the otlp exporter is selected
// without an endpoint.
var ErrMissingOTLPEndpoint = errors.New("otel.otlp_endpoint is required by the otlp traces exporter")

// Validate checks the exporter selection.
func (c Config) Validate() error {
	switch c.TracesExporter {
	case "", ExporterNone, ExporterStdout:
		return nil
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			return ErrMissingOTLPEndpoint
		}
		return nil
	default:
		return UnknownExporterError{Exporter: c.TracesExporter}
	}
}

// Option configures [Setup].
type Option func(*options)

type options struct {
	traceWriter io.Writer
}

// TraceWriter sets where the stdout exporter writes spans. Defaults to os.Stdout.
func TraceWriter(w io.Writer) Option {
	return func(o *options) {
		o.traceWriter = w
	}
}

// Providers are the telemetry components built from a [Config].
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Propagator     propagation.TextMapPropagator

	// MetricsHandler serves the Prometheus exposition format.
	// It is nil when metrics are disabled.
	MetricsHandler http.Handler

	shutdowns []func(context.Context) error
}

// Setup builds the providers described by cfg. When ctx carries a
// [lifecycle.Context] their shutdown is registered as a post run hook.
func Setup(ctx context.Context, cfg Config, opts ...Option) (*Providers, error) {
	o := &options{
		traceWriter: os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	res := newResource(cfg)
	p := &Providers{
		Propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}

	tp, err := newTracerProvider(ctx, cfg, res, o)
	if err != nil {
		return nil, err
	}
	p.TracerProvider = tp
	p.shutdowns = append(p.shutdowns, tp.Shutdown)

	err = p.setupMetrics(cfg, res)
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(ctx))
	}

	lc, ok := lifecycle.FromContext(ctx)
	if ok {
		lc.OnPostRun(lifecycle.HookFunc(p.Shutdown))
	}
	return p, nil
}

// Install makes p the global otel providers and propagator.
func (p *Providers) Install() {
	otel.SetTextMapPropagator(p.Propagator)
	otel.SetTracerProvider(p.TracerProvider)
	otel.SetMeterProvider(p.MeterProvider)
}

// Shutdown flushes and stops every provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	errs := make([]error, 0, len(p.shutdowns))
	for _, shutdown := range p.shutdowns {
		errs = append(errs, shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (p *Providers) setupMetrics(cfg Config, res *resource.Resource) error {
	if !cfg.MetricsEnabled {
		p.MeterProvider = metricnoop.NewMeterProvider()
		return nil
	}

	reg := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	p.MeterProvider = mp
	p.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	p.shutdowns = append(p.shutdowns, mp.Shutdown)
	return nil
}

func newResource(cfg Config) *resource.Resource {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}
	return resource.NewSchemaless(attrs...)
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource, o *options) (*sdktrace.TracerProvider, error) {
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	switch cfg.TracesExporter {
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(o.traceWriter))
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	case ExporterOTLP:
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(cfg.OTLPEndpoint))
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	return sdktrace.NewTracerProvider(tpOpts...), nil
}
