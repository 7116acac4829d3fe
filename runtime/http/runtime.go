// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/keel/internal/fixedpool"
	"github.com/z5labs/keel/internal/noop"
	"github.com/z5labs/keel/lifecycle"
	"github.com/z5labs/keel/slogfield"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Option configures a [Runtime].
type Option func(*Runtime)

// DisableGeneralOptionsHandler controls whether the server automatically
// replies to OPTIONS * requests.
func DisableGeneralOptionsHandler(disable bool) Option {
	return func(rt *Runtime) {
		rt.srv.DisableGeneralOptionsHandler = disable
	}
}

// ReadTimeout sets the maximum duration for reading the entire request.
func ReadTimeout(d time.Duration) Option {
	return func(rt *Runtime) {
		rt.srv.ReadTimeout = d
	}
}

// ReadHeaderTimeout sets the maximum duration for reading request headers.
func ReadHeaderTimeout(d time.Duration) Option {
	return func(rt *Runtime) {
		rt.srv.ReadHeaderTimeout = d
	}
}

// WriteTimeout sets the maximum duration before timing out response writes.
func WriteTimeout(d time.Duration) Option {
	return func(rt *Runtime) {
		rt.srv.WriteTimeout = d
	}
}

// IdleTimeout sets how long a keep-alive connection may wait for its next request.
func IdleTimeout(d time.Duration) Option {
	return func(rt *Runtime) {
		rt.srv.IdleTimeout = d
	}
}

// MaxHeaderBytes limits the size of request headers.
func MaxHeaderBytes(n int) Option {
	return func(rt *Runtime) {
		rt.srv.MaxHeaderBytes = n
	}
}

// ShutdownTimeout bounds how long in flight requests may take to
// complete once shutdown begins.
func ShutdownTimeout(d time.Duration) Option {
	return func(rt *Runtime) {
		rt.shutdownTimeout = d
	}
}

// DrainDelay is how long to keep serving after readiness flips to false,
// giving load balancers time to stop routing new traffic.
func DrainDelay(d time.Duration) Option {
	return func(rt *Runtime) {
		rt.drainDelay = d
	}
}

// LogHandler sets the handler used for server lifecycle logs.
func LogHandler(h slog.Handler) Option {
	return func(rt *Runtime) {
		rt.log = slog.New(h)
	}
}

// State sets the lifecycle state the runtime reports into.
func State(s *lifecycle.State) Option {
	return func(rt *Runtime) {
		rt.state = s
	}
}

// Runtime serves HTTP on a listener until its context is cancelled.
type Runtime struct {
	ls              net.Listener
	srv             *http.Server
	state           *lifecycle.State
	log             *slog.Logger
	drainDelay      time.Duration
	shutdownTimeout time.Duration
}

// Listen opens a TCP listener on every interface at port. A zero port
// picks any free port.
func Listen(port uint) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf(":%d", port))
}

// NewRuntime returns a [Runtime] which serves h on ls.
func NewRuntime(ls net.Listener, h http.Handler, opts ...Option) *Runtime {
	rt := &Runtime{
		ls: ls,
		srv: &http.Server{
			Handler: otelhttp.NewHandler(
				h,
				"http.server",
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return r.Method
				}),
			),
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1048576,
		},
		state:           lifecycle.NewState(),
		log:             slog.New(noop.LogHandler{}),
		shutdownTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Addr is the address the runtime is listening on.
func (rt *Runtime) Addr() net.Addr {
	return rt.ls.Addr()
}

// Run serves requests and blocks until ctx is cancelled and the server has
// shut down, or the server fails.
func (rt *Runtime) Run(ctx context.Context) error {
	err := fixedpool.Wait(ctx, rt.serve, rt.shutdown)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (rt *Runtime) serve(ctx context.Context) error {
	rt.state.MarkStarted()
	rt.log.InfoContext(ctx, "serving http", slogfield.String("addr", rt.ls.Addr().String()))

	err := rt.srv.Serve(rt.ls)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (rt *Runtime) shutdown(ctx context.Context) error {
	<-ctx.Done()

	rt.state.MarkStopping()
	rt.log.Info("http server stopping", slogfield.Duration("drain_delay", rt.drainDelay))

	if rt.drainDelay > 0 {
		time.Sleep(rt.drainDelay)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.shutdownTimeout)
	defer cancel()

	err := rt.srv.Shutdown(shutdownCtx)
	if err != nil {
		rt.log.Error("http server did not shut down gracefully", slogfield.Error(err))
		return errors.Join(err, rt.srv.Close())
	}
	rt.log.Info("http server stopped")
	return nil
}
