// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package logging

import (
	"context"
	"log/slog"

	"github.com/z5labs/keel/correlation"
	"github.com/z5labs/keel/slogfield"

	"go.opentelemetry.io/otel/trace"
)

// ContextHandler adds the correlation id and the active span's
// trace and span ids to every record logged with a context. The added
// attributes always sit at the top level of the record, even when the
// handler has been derived with WithGroup.
type ContextHandler struct {
	slog slog.Handler

	// root is the wrapped handler before the first WithGroup and
	// derive replays every derivation made since then.
	root   slog.Handler
	derive []func(slog.Handler) slog.Handler
}

// NewContextHandler wraps h.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{slog: h, root: h}
}

// Enabled implements the slog.Handler interface.
func (h *ContextHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := contextAttrs(ctx)
	if len(attrs) == 0 {
		return h.slog.Handle(ctx, record)
	}
	if len(h.derive) == 0 {
		r := record.Clone()
		r.AddAttrs(attrs...)
		return h.slog.Handle(ctx, r)
	}

	inner := h.root.WithAttrs(attrs)
	for _, f := range h.derive {
		inner = f(inner)
	}
	return inner.Handle(ctx, record)
}

func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if id, ok := correlation.FromContext(ctx); ok {
		attrs = append(attrs, slogfield.CorrelationID(id.String()))
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		attrs = append(
			attrs,
			slog.Group(
				"otel",
				slogfield.String("trace_id", spanCtx.TraceID().String()),
				slogfield.String("span_id", spanCtx.SpanID().String()),
			),
		)
	}
	return attrs
}

// WithAttrs implements the slog.Handler interface.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(h.derive) == 0 {
		return NewContextHandler(h.slog.WithAttrs(attrs))
	}
	return h.with(h.slog.WithAttrs(attrs), func(inner slog.Handler) slog.Handler {
		return inner.WithAttrs(attrs)
	})
}

// WithGroup implements the slog.Handler interface.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(h.slog.WithGroup(name), func(inner slog.Handler) slog.Handler {
		return inner.WithGroup(name)
	})
}

func (h *ContextHandler) with(derived slog.Handler, f func(slog.Handler) slog.Handler) *ContextHandler {
	derive := make([]func(slog.Handler) slog.Handler, 0, len(h.derive)+1)
	derive = append(derive, h.derive...)
	derive = append(derive, f)
	return &ContextHandler{
		slog:   derived,
		root:   h.root,
		derive: derive,
	}
}
