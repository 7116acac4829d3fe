// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package resilience governs outbound HTTP calls with a hard per-attempt
// timeout and jittered exponential retries.
package resilience

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/z5labs/keel/internal/ioutil"
	"github.com/z5labs/keel/internal/noop"
	"github.com/z5labs/keel/slogfield"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/z5labs/keel/resilience"

// Call performs a single attempt. The context carries the attempt deadline.
type Call func(ctx context.Context) (*http.Response, error)

// TimeoutError is returned when a single attempt exceeds its deadline.
type TimeoutError struct {
	After time.Duration
	Cause error
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("attempt timed out after %s: %s", e.After, e.Cause)
}

func (e TimeoutError) Unwrap() error {
	return e.Cause
}

// Timeout reports true so TimeoutError satisfies net.Error style checks.
func (e TimeoutError) Timeout() bool {
	return true
}

type options struct {
	name       string
	logHandler slog.Handler
	meter      metric.Meter
	base       http.RoundTripper
}

// Option configures a Policy.
type Option func(*options)

// Name identifies the policy in logs and circuit breaker state.
func Name(s string) Option {
	return func(o *options) {
		o.name = s
	}
}

// LogHandler sets the handler retry decisions are logged through.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Meter sets the meter the retry counter is created from.
func Meter(m metric.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// RoundTripper sets the transport NewClient sends attempts through.
func RoundTripper(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// Policy executes calls under a Config. It holds no per-call state and is
// safe for concurrent use.
type Policy struct {
	cfg     Config
	log     *slog.Logger
	breaker *gobreaker.CircuitBreaker
	retries metric.Int64Counter
	base    http.RoundTripper

	jitter func() float64
	sleep  func(context.Context, time.Duration) error
}

// New validates cfg and returns a Policy.
func New(cfg Config, opts ...Option) (*Policy, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	o := &options{
		name:       "outbound",
		logHandler: noop.LogHandler{},
		base:       http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.meter == nil {
		o.meter = otel.Meter(instrumentationName)
	}

	log := slog.New(o.logHandler).With(slogfield.String("http_client", o.name))
	retries, err := o.meter.Int64Counter(
		"outbound.http.retries",
		metric.WithDescription("Retries of outbound HTTP attempts."),
	)
	if err != nil {
		retries = metricnoop.Int64Counter{}
	}

	p := &Policy{
		cfg:     cfg,
		log:     log,
		retries: retries,
		base:    o.base,
		jitter:  rand.Float64,
		sleep:   sleep,
	}
	if cfg.CircuitBreaker.Enabled {
		p.breaker = newBreaker(o.name, cfg.CircuitBreaker, log)
	}
	return p, nil
}

// Execute runs call, retrying retryable failures up to MaxRetryAttempts
// times. The outcome of the last attempt is returned unmodified. Bodies
// of discarded responses are drained and closed. Cancelling ctx stops
// the loop immediately, including during a backoff wait.
func (p *Policy) Execute(ctx context.Context, call Call) (*http.Response, error) {
	return p.execute(ctx, call, p.cfg.MaxRetryAttempts)
}

func (p *Policy) execute(ctx context.Context, call Call, maxRetries int) (*http.Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := p.attempt(ctx, call)
		if err != nil && ctx.Err() != nil {
			return resp, err
		}

		retry, reason := Classify(resp, err)
		if !retry || attempt > maxRetries {
			return resp, err
		}

		delay := p.cfg.Delay(attempt, p.jitter())
		p.log.DebugContext(
			ctx,
			"retrying outbound http call",
			slogfield.Attempt(attempt),
			slogfield.DelayMs(delay),
			slogfield.Reason(reason),
		)
		p.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		discard(resp)

		err = p.sleep(ctx, delay)
		if err != nil {
			return nil, err
		}
	}
}

func (p *Policy) attempt(ctx context.Context, call Call) (*http.Response, error) {
	timeout := p.cfg.AttemptTimeout()
	actx, cancel := context.WithTimeout(ctx, timeout)

	resp, err := p.guard(actx, call)
	if err != nil {
		cancel()
		if ctx.Err() == nil && actx.Err() == context.DeadlineExceeded {
			err = TimeoutError{After: timeout, Cause: err}
		}
		return resp, err
	}
	if resp == nil {
		cancel()
		return nil, nil
	}
	if resp.Body == nil {
		resp.Body = http.NoBody
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (p *Policy) guard(ctx context.Context, call Call) (*http.Response, error) {
	if p.breaker == nil {
		return call(ctx)
	}
	return breakerCall(ctx, p.breaker, call)
}

// cancelOnClose releases the attempt context once the caller is done
// with the response body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_ = ioutil.DrainAndTryClose(resp.Body, 4096)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
