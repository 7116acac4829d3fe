// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Mask replaces every redacted value.
const Mask = "****"

// DefaultRedactKeys are always masked. Keys match case-insensitively so
// canonical header names are covered too.
var DefaultRedactKeys = []string{
	"authorization",
	"cookie",
	"set-cookie",
	"proxy-authorization",
}

// RedactHandler masks attribute values by key, at any group depth.
type RedactHandler struct {
	slog slog.Handler
	keys map[string]struct{}
}

// NewRedactHandler wraps h so the values of the given keys are masked.
func NewRedactHandler(h slog.Handler, keys ...string) *RedactHandler {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[strings.ToLower(k)] = struct{}{}
	}
	return &RedactHandler{slog: h, keys: m}
}

// Enabled implements the slog.Handler interface.
func (h *RedactHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *RedactHandler) Handle(ctx context.Context, record slog.Record) error {
	if len(h.keys) == 0 || record.NumAttrs() == 0 {
		return h.slog.Handle(ctx, record)
	}

	attrs := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.redact(a))
		return true
	})

	r := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	r.AddAttrs(attrs...)
	return h.slog.Handle(ctx, r)
}

// WithAttrs implements the slog.Handler interface.
func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.redact(a)
	}
	return &RedactHandler{slog: h.slog.WithAttrs(masked), keys: h.keys}
}

// WithGroup implements the slog.Handler interface.
func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{slog: h.slog.WithGroup(name), keys: h.keys}
}

func (h *RedactHandler) redact(a slog.Attr) slog.Attr {
	if _, ok := h.keys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Mask)
	}

	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		return a
	}
	group := v.Group()
	masked := make([]slog.Attr, len(group))
	for i, ga := range group {
		masked[i] = h.redact(ga)
	}
	return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
}
