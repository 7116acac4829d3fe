// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/z5labs/keel/internal/noop"
	"github.com/z5labs/keel/slogfield"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultSlowRequestThreshold is the elapsed time at which a completed
// request is logged at warn instead of info.
const DefaultSlowRequestThreshold = 750 * time.Millisecond

const meterName = "github.com/z5labs/keel/pipeline"

// Outcome summarizes a completed request.
type Outcome struct {
	Method  string
	Path    string
	Status  int
	Bytes   int64
	Elapsed time.Duration
}

// Level is the log level an Outcome is reported at given the slow threshold.
func (o Outcome) Level(threshold time.Duration) slog.Level {
	if o.Elapsed >= threshold {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func (o Outcome) attrs() []slog.Attr {
	return []slog.Attr{
		slogfield.Method(o.Method),
		slogfield.Path(o.Path),
		slogfield.Status(o.Status),
		slogfield.BytesWritten(o.Bytes),
		slogfield.ElapsedMs(o.Elapsed),
	}
}

// LatencyLogger logs one record per completed request.
type LatencyLogger struct {
	log        *slog.Logger
	threshold  time.Duration
	suppress   []string
	logHeaders bool
	meter      metric.Meter
	duration   metric.Float64Histogram
	now        func() time.Time
}

// LatencyOption configures a LatencyLogger.
type LatencyOption func(*LatencyLogger)

// LatencyLogHandler sets the handler request records are written to.
// Records carry the request's correlation id.
func LatencyLogHandler(h slog.Handler) LatencyOption {
	return func(l *LatencyLogger) {
		l.log = slog.New(contextual(h))
	}
}

// SlowRequestThreshold overrides DefaultSlowRequestThreshold.
func SlowRequestThreshold(d time.Duration) LatencyOption {
	return func(l *LatencyLogger) {
		l.threshold = d
	}
}

// SuppressPathPrefixes skips the log record, but not the duration metric,
// for paths equal to or nested below any prefix.
func SuppressPathPrefixes(prefixes ...string) LatencyOption {
	return func(l *LatencyLogger) {
		l.suppress = prefixes
	}
}

// LogRequestHeaders adds the request headers to every record.
func LogRequestHeaders(b bool) LatencyOption {
	return func(l *LatencyLogger) {
		l.logHeaders = b
	}
}

// LatencyMeter sets the meter the request duration histogram is created from.
func LatencyMeter(m metric.Meter) LatencyOption {
	return func(l *LatencyLogger) {
		l.meter = m
	}
}

// NewLatencyLogger returns a LatencyLogger. The threshold must be positive.
func NewLatencyLogger(opts ...LatencyOption) (*LatencyLogger, error) {
	l := &LatencyLogger{
		log:       slog.New(noop.LogHandler{}),
		threshold: DefaultSlowRequestThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.threshold <= 0 {
		return nil, InvalidThresholdError{Threshold: l.threshold}
	}
	if l.meter == nil {
		l.meter = otel.Meter(meterName)
	}

	hist, err := l.meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of inbound HTTP requests."),
	)
	if err != nil {
		return nil, err
	}
	l.duration = hist
	return l, nil
}

// Handle implements the Stage interface.
func (l *LatencyLogger) Handle(w *Response, r *http.Request, next Next) error {
	start := l.now()
	err := next(w, r)
	elapsed := l.now().Sub(start)

	ctx := r.Context()
	if err != nil {
		l.log.DebugContext(
			ctx,
			"request ended with an unhandled error",
			slogfield.Path(r.URL.Path),
			slogfield.ElapsedMs(elapsed),
		)
		return err
	}

	o := Outcome{
		Method:  r.Method,
		Path:    r.URL.Path,
		Status:  w.Status(),
		Bytes:   w.Written(),
		Elapsed: elapsed,
	}
	l.record(ctx, o)
	if l.suppressed(o.Path) {
		return nil
	}

	attrs := o.attrs()
	if l.logHeaders {
		attrs = append(attrs, slogfield.Headers(r.Header))
	}
	l.log.LogAttrs(ctx, o.Level(l.threshold), "request completed", attrs...)
	return nil
}

func (l *LatencyLogger) record(ctx context.Context, o Outcome) {
	l.duration.Record(
		ctx,
		o.Elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("http.request.method", o.Method),
			attribute.Int("http.response.status_code", o.Status),
		),
	)
}

func (l *LatencyLogger) suppressed(path string) bool {
	for _, prefix := range l.suppress {
		prefix = strings.TrimSuffix(prefix, "/")
		if prefix == "" {
			continue
		}
		rest, ok := strings.CutPrefix(path, prefix)
		if ok && (rest == "" || rest[0] == '/') {
			return true
		}
	}
	return false
}
