// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package grpchealth exposes lifecycle readiness through the standard
// grpc.health.v1 service for orchestrators which probe over gRPC.
package grpchealth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/z5labs/keel/internal/noop"
	"github.com/z5labs/keel/lifecycle"
	"github.com/z5labs/keel/slogfield"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Server answers health checks from the readiness of a lifecycle.State.
// The empty service name and every registered name are known.
type Server struct {
	grpc_health_v1.UnimplementedHealthServer

	state    *lifecycle.State
	services map[string]struct{}
}

// NewServer returns a Server for state. Additional service names may be
// given for clients which probe a specific service.
func NewServer(state *lifecycle.State, services ...string) *Server {
	known := map[string]struct{}{"": {}}
	for _, s := range services {
		known[s] = struct{}{}
	}
	return &Server{state: state, services: known}
}

// Check implements the grpc_health_v1.HealthServer interface.
func (s *Server) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if _, ok := s.services[req.GetService()]; !ok {
		return nil, status.Errorf(codes.NotFound, "unknown service: %q", req.GetService())
	}
	return &grpc_health_v1.HealthCheckResponse{Status: servingStatus(s.state.Ready())}, nil
}

func servingStatus(ready bool) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if ready {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}

type runtimeOptions struct {
	port       uint
	logHandler slog.Handler
	services   []string
	listen     func(network, addr string) (net.Listener, error)
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*runtimeOptions)

// ListenOnPort sets the port the health service listens on. Default 8090.
func ListenOnPort(port uint) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.port = port
	}
}

// LogHandler configures the underlying slog.Handler.
func LogHandler(h slog.Handler) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.logHandler = h
	}
}

// ServiceNames registers additional service names answered by Check.
func ServiceNames(names ...string) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.services = append(ro.services, names...)
	}
}

// Runtime serves the health service on its own gRPC server.
type Runtime struct {
	port   uint
	listen func(network, addr string) (net.Listener, error)
	log    *slog.Logger
	grpc   *grpc.Server
}

// NewRuntime returns a Runtime reporting the readiness of state.
func NewRuntime(state *lifecycle.State, opts ...RuntimeOption) *Runtime {
	ro := &runtimeOptions{
		port:       8090,
		logHandler: noop.LogHandler{},
		listen:     net.Listen,
	}
	for _, opt := range opts {
		opt(ro)
	}

	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	grpc_health_v1.RegisterHealthServer(s, NewServer(state, ro.services...))

	return &Runtime{
		port:   ro.port,
		listen: ro.listen,
		log:    slog.New(ro.logHandler),
		grpc:   s,
	}
}

// Run serves until ctx is cancelled and then stops gracefully.
func (rt *Runtime) Run(ctx context.Context) error {
	ls, err := rt.listen("tcp", fmt.Sprintf(":%d", rt.port))
	if err != nil {
		rt.log.ErrorContext(ctx, "failed to listen for grpc health connections", slogfield.Error(err))
		return err
	}
	return rt.serve(ctx, ls)
}

func (rt *Runtime) serve(ctx context.Context, ls net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()

		rt.log.InfoContext(gctx, "shutting down grpc health service")
		rt.grpc.GracefulStop()
		return nil
	})
	g.Go(func() error {
		rt.log.InfoContext(gctx, "started grpc health service", slogfield.String("addr", ls.Addr().String()))
		return rt.grpc.Serve(ls)
	})

	err := g.Wait()
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	rt.log.ErrorContext(ctx, "grpc health service encountered unexpected error", slogfield.Error(err))
	return err
}
