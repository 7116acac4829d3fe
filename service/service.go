// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package service assembles the keel HTTP service from its config.
package service

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/z5labs/keel"
	"github.com/z5labs/keel/correlation"
	"github.com/z5labs/keel/health"
	"github.com/z5labs/keel/health/grpchealth"
	"github.com/z5labs/keel/health/pgcheck"
	"github.com/z5labs/keel/lifecycle"
	"github.com/z5labs/keel/logging"
	"github.com/z5labs/keel/pipeline"
	"github.com/z5labs/keel/resilience"
	httpruntime "github.com/z5labs/keel/runtime/http"
	"github.com/z5labs/keel/slogfield"
	"github.com/z5labs/keel/telemetry"
)

const instrumentationName = "github.com/z5labs/keel/service"

// Option configures a [Service] beyond what its Config covers.
type Option func(*options)

type options struct {
	logWriter   io.Writer
	traceWriter io.Writer
	listener    net.Listener
	transport   http.RoundTripper
}

// LogWriter sets where logs are written. Defaults to os.Stdout.
func LogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logWriter = w
	}
}

// TraceWriter sets where the stdout traces exporter writes.
func TraceWriter(w io.Writer) Option {
	return func(o *options) {
		o.traceWriter = w
	}
}

// Listener serves HTTP on ls instead of listening on http.port.
func Listener(ls net.Listener) Option {
	return func(o *options) {
		o.listener = ls
	}
}

// Transport sets the round tripper outbound attempts are sent through.
func Transport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// Service is the assembled application.
type Service struct {
	cfg     Config
	log     *slog.Logger
	state   *lifecycle.State
	handler http.Handler
	http    *httpruntime.Runtime
	grpc    *grpchealth.Runtime
	warmup  *lifecycle.Warmup
}

// Build implements [keel.AppBuilderFunc] for [Config].
func Build(ctx context.Context, cfg Config) (keel.App, error) {
	return New(ctx, cfg)
}

// New wires every component described by cfg. Telemetry shutdown and the
// database pool close are registered on the [lifecycle.Context] in ctx,
// when present.
func New(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	o := &options{
		logWriter:   os.Stdout,
		traceWriter: os.Stdout,
		transport:   http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}

	logHandler, err := logging.NewHandler(cfg.Logging, o.logWriter)
	if err != nil {
		return nil, err
	}
	log := slog.New(logHandler)

	providers, err := telemetry.Setup(ctx, cfg.OTel, telemetry.TraceWriter(o.traceWriter))
	if err != nil {
		return nil, err
	}
	providers.Install()
	meter := providers.MeterProvider.Meter(instrumentationName)

	client, err := resilience.NewClient(
		cfg.OutboundHTTP,
		resilience.Name("demo"),
		resilience.LogHandler(logHandler),
		resilience.Meter(meter),
		resilience.RoundTripper(o.transport),
	)
	if err != nil {
		return nil, err
	}

	state := lifecycle.NewState()

	readiness := []health.Check{
		health.Named("readiness", health.Readiness(state)),
	}
	if cfg.Database.Enabled() {
		pool, err := pgcheck.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		registerPostRun(ctx, lifecycle.HookFunc(func(context.Context) error {
			pool.Close()
			return nil
		}))
		readiness = append(readiness, health.Named("database", pgcheck.New(pool, cfg.Database.Timeout())))
	}

	mux := http.NewServeMux()
	mux.Handle("/health/live", health.Handler(health.Named("self", health.Alive())))
	mux.Handle("/health/ready", health.Handler(readiness...))
	if providers.MetricsHandler != nil {
		mux.Handle("GET /metrics", providers.MetricsHandler)
	}
	mux.Handle("GET /demo/outbound/ip", pipeline.HandlerFunc(outboundDemo{
		client:   client,
		upstream: cfg.Demo.UpstreamURL,
	}.ServeHTTPE))

	handler, err := pipeline.Baseline(
		mux,
		pipeline.LogHandler(logHandler),
		pipeline.WithEnvironment(cfg.Environment),
		pipeline.CorrelationHeader(cfg.Baseline.CorrelationHeader),
		pipeline.IncludeTraceID(cfg.Baseline.IncludeTraceID),
		pipeline.CorrelationGenerator(correlation.NewRandom),
		pipeline.RequestLogging(
			cfg.Baseline.EnableRequestLogging,
			pipeline.SlowRequestThreshold(cfg.Baseline.SlowRequestThreshold()),
			pipeline.SuppressPathPrefixes(cfg.Baseline.SuppressRequestLogPathPrefixes...),
			pipeline.LogRequestHeaders(cfg.Baseline.LogRequestHeaders),
		),
		pipeline.Meter(meter),
		pipeline.EnableSecurityHeaders(cfg.Baseline.EnableSecurityHeaders),
	)
	if err != nil {
		return nil, err
	}

	ls := o.listener
	if ls == nil {
		ls, err = httpruntime.Listen(cfg.HTTP.Port)
		if err != nil {
			return nil, err
		}
	}

	s := &Service{
		cfg:     cfg,
		log:     log,
		state:   state,
		handler: handler,
		http: httpruntime.NewRuntime(
			ls,
			handler,
			httpruntime.State(state),
			httpruntime.LogHandler(logHandler),
			httpruntime.ReadTimeout(cfg.HTTP.ReadTimeout),
			httpruntime.ReadHeaderTimeout(cfg.HTTP.ReadHeaderTimeout),
			httpruntime.WriteTimeout(cfg.HTTP.WriteTimeout),
			httpruntime.IdleTimeout(cfg.HTTP.IdleTimeout),
			httpruntime.ShutdownTimeout(cfg.HTTP.ShutdownTimeout),
			httpruntime.DrainDelay(cfg.HTTP.DrainDelay),
		),
		warmup: lifecycle.NewWarmup(
			lifecycle.Delay(cfg.Warmup.Delay),
			lifecycle.WarmupLogHandler(logHandler),
		),
	}
	if cfg.GRPC.HealthPort != 0 {
		s.grpc = grpchealth.NewRuntime(
			state,
			grpchealth.ListenOnPort(cfg.GRPC.HealthPort),
			grpchealth.LogHandler(logHandler),
		)
	}
	return s, nil
}

func registerPostRun(ctx context.Context, hook lifecycle.Hook) {
	lc, ok := lifecycle.FromContext(ctx)
	if !ok {
		return
	}
	lc.OnPostRun(hook)
}

// Handler is the full request pipeline in front of every route.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// State is the lifecycle state shared by the runtimes, warmup and probes.
func (s *Service) State() *lifecycle.State {
	return s.state
}

// Addr is the address HTTP is served on.
func (s *Service) Addr() net.Addr {
	return s.http.Addr()
}

// Run serves until ctx is cancelled. The HTTP server, the warmup and the
// optional gRPC health server run concurrently.
func (s *Service) Run(ctx context.Context) error {
	s.log.InfoContext(
		ctx,
		"starting service",
		slogfield.String("environment", string(s.cfg.Environment)),
		slogfield.String("addr", s.Addr().String()),
	)

	apps := []keel.App{
		s.http,
		keel.AppFunc(func(ctx context.Context) error {
			return s.warmup.Run(ctx, s.state)
		}),
	}
	if s.grpc != nil {
		apps = append(apps, s.grpc)
	}

	err := keel.Concurrently(apps...).Run(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "service stopped with an error", slogfield.Error(err))
		return err
	}
	s.log.InfoContext(ctx, "service stopped")
	return nil
}
