// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/z5labs/keel/correlation"
	"github.com/z5labs/keel/internal/noop"
	"github.com/z5labs/keel/logging"

	"go.opentelemetry.io/otel/metric"
)

// InvalidThresholdError is returned for a non-positive slow request threshold.
type InvalidThresholdError struct {
	Threshold time.Duration
}

func (e InvalidThresholdError) Error() string {
	return fmt.Sprintf("slow request threshold must be positive: %s", e.Threshold)
}

// contextual wraps h so records logged with a request context carry its
// correlation id, unless h already does that.
func contextual(h slog.Handler) slog.Handler {
	if _, ok := h.(*logging.ContextHandler); ok {
		return h
	}
	return logging.NewContextHandler(h)
}

type baselineOptions struct {
	logHandler      slog.Handler
	env             Environment
	resolverOpts    []correlation.Option
	latencyOpts     []LatencyOption
	requestLogging  bool
	securityHeaders bool
}

// BaselineOption configures the stages assembled by Baseline.
type BaselineOption func(*baselineOptions)

// LogHandler sets the handler every stage logs through.
func LogHandler(h slog.Handler) BaselineOption {
	return func(bo *baselineOptions) {
		bo.logHandler = h
	}
}

// WithEnvironment sets the deployment environment.
func WithEnvironment(env Environment) BaselineOption {
	return func(bo *baselineOptions) {
		bo.env = env
	}
}

// CorrelationHeader overrides correlation.DefaultHeader.
func CorrelationHeader(name string) BaselineOption {
	return func(bo *baselineOptions) {
		bo.resolverOpts = append(bo.resolverOpts, correlation.Header(name))
	}
}

// IncludeTraceID controls whether the active trace id is used as the
// correlation id when the request carries none.
func IncludeTraceID(b bool) BaselineOption {
	return func(bo *baselineOptions) {
		bo.resolverOpts = append(bo.resolverOpts, correlation.UseTraceID(b))
	}
}

// CorrelationGenerator replaces the random correlation id generator.
func CorrelationGenerator(f func() string) BaselineOption {
	return func(bo *baselineOptions) {
		bo.resolverOpts = append(bo.resolverOpts, correlation.Generator(f))
	}
}

// RequestLogging enables or disables the LatencyLogger stage.
func RequestLogging(enabled bool, opts ...LatencyOption) BaselineOption {
	return func(bo *baselineOptions) {
		bo.requestLogging = enabled
		bo.latencyOpts = append(bo.latencyOpts, opts...)
	}
}

// Meter sets the meter request metrics are recorded with.
func Meter(m metric.Meter) BaselineOption {
	return func(bo *baselineOptions) {
		bo.latencyOpts = append(bo.latencyOpts, LatencyMeter(m))
	}
}

// EnableSecurityHeaders enables or disables the SecurityHeaders stage.
func EnableSecurityHeaders(enabled bool) BaselineOption {
	return func(bo *baselineOptions) {
		bo.securityHeaders = enabled
	}
}

// Baseline wraps inner with, in order, correlation, error translation,
// latency logging and security headers. Stages can be disabled but the
// order never changes.
func Baseline(inner http.Handler, opts ...BaselineOption) (*Pipeline, error) {
	bo := &baselineOptions{
		logHandler:      noop.LogHandler{},
		env:             Production,
		requestLogging:  true,
		securityHeaders: true,
	}
	for _, opt := range opts {
		opt(bo)
	}

	stages := []Stage{
		NewCorrelation(correlation.NewResolver(bo.resolverOpts...)),
		NewTranslator(
			TranslatorLogHandler(bo.logHandler),
			TranslatorEnvironment(bo.env),
		),
	}
	if bo.requestLogging {
		latencyOpts := append([]LatencyOption{LatencyLogHandler(bo.logHandler)}, bo.latencyOpts...)
		ll, err := NewLatencyLogger(latencyOpts...)
		if err != nil {
			return nil, err
		}
		stages = append(stages, ll)
	}
	if bo.securityHeaders {
		stages = append(stages, SecurityHeaders{})
	}
	return New(inner, stages...), nil
}
