// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/z5labs/keel/correlation"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func spanContext(t *testing.T) trace.SpanContext {
	t.Helper()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if !assert.Nil(t, err) {
		t.FailNow()
	}
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	if !assert.Nil(t, err) {
		t.FailNow()
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any
	err := json.Unmarshal(buf.Bytes(), &record)
	if !assert.Nil(t, err) {
		t.FailNow()
	}
	return record
}

func TestNewHandler(t *testing.T) {
	t.Run("will return an UnknownFormatError", func(t *testing.T) {
		t.Run("if the format has no backend", func(t *testing.T) {
			_, err := NewHandler(Config{Format: "xml"}, &bytes.Buffer{})

			var ierr UnknownFormatError
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.NotEmpty(t, ierr.Error()) {
				return
			}
			assert.Equal(t, ierr, Config{Format: "xml"}.Validate())
		})
	})

	t.Run("will respect the configured level", func(t *testing.T) {
		formats := []Format{FormatJSON, FormatText, FormatZap}
		for _, format := range formats {
			t.Run(string(format), func(t *testing.T) {
				var buf bytes.Buffer
				h, err := NewHandler(Config{Level: slog.LevelWarn, Format: format}, &buf)
				if !assert.Nil(t, err) {
					return
				}

				log := slog.New(h)
				log.Info("quiet")
				if !assert.Zero(t, buf.Len()) {
					return
				}

				log.Warn("loud")
				assert.Contains(t, buf.String(), "loud")
			})
		}
	})

	t.Run("will enrich and redact records", func(t *testing.T) {
		var buf bytes.Buffer
		h, err := NewHandler(Config{Level: slog.LevelDebug}, &buf)
		if !assert.Nil(t, err) {
			return
		}

		ctx := correlation.NewContext(context.Background(), "abc")
		ctx = trace.ContextWithSpanContext(ctx, spanContext(t))

		slog.New(h).InfoContext(ctx, "hello", slog.String("Authorization", "Bearer secret"))

		record := decode(t, &buf)
		if !assert.Equal(t, "abc", record["correlation_id"]) {
			return
		}
		if !assert.Equal(t, Mask, record["Authorization"]) {
			return
		}
		otel, ok := record["otel"].(map[string]any)
		if !assert.True(t, ok) {
			return
		}
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", otel["trace_id"])
	})
}

func TestContextHandler(t *testing.T) {
	t.Run("will not add fields", func(t *testing.T) {
		t.Run("if the context carries neither an id nor a span", func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))

			log.InfoContext(context.Background(), "hello")

			record := decode(t, &buf)
			if !assert.NotContains(t, record, "correlation_id") {
				return
			}
			assert.NotContains(t, record, "otel")
		})
	})

	t.Run("will keep fields added through WithAttrs", func(t *testing.T) {
		var buf bytes.Buffer
		var h slog.Handler = NewContextHandler(slog.NewJSONHandler(&buf, nil))
		h = h.WithAttrs([]slog.Attr{slog.String("a", "b")})

		ctx := correlation.NewContext(context.Background(), "xyz")
		slog.New(h).InfoContext(ctx, "hello")

		record := decode(t, &buf)
		if !assert.Equal(t, "b", record["a"]) {
			return
		}
		assert.Equal(t, "xyz", record["correlation_id"])
	})

	t.Run("will add fields at the top level", func(t *testing.T) {
		t.Run("if the handler was derived with WithGroup", func(t *testing.T) {
			var buf bytes.Buffer
			var h slog.Handler = NewContextHandler(slog.NewJSONHandler(&buf, nil))
			h = h.WithAttrs([]slog.Attr{slog.String("a", "b")})
			h = h.WithGroup("req")
			h = h.WithAttrs([]slog.Attr{slog.String("c", "d")})

			ctx := correlation.NewContext(context.Background(), "xyz")
			ctx = trace.ContextWithSpanContext(ctx, spanContext(t))
			slog.New(h).InfoContext(ctx, "hello", slog.Int("n", 1))

			record := decode(t, &buf)
			if !assert.Equal(t, "xyz", record["correlation_id"]) {
				return
			}
			if !assert.Equal(t, "b", record["a"]) {
				return
			}
			if !assert.Contains(t, record, "otel") {
				return
			}

			req, ok := record["req"].(map[string]any)
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, "d", req["c"]) {
				return
			}
			if !assert.Equal(t, float64(1), req["n"]) {
				return
			}
			assert.NotContains(t, req, "correlation_id")
		})
	})
}

func TestRedactHandler(t *testing.T) {
	t.Run("will mask keys inside groups", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(NewRedactHandler(slog.NewJSONHandler(&buf, nil), DefaultRedactKeys...))

		log.Info("request", slog.Group("headers",
			slog.String("Cookie", "session=1"),
			slog.String("Accept", "text/plain"),
		))

		record := decode(t, &buf)
		headers, ok := record["headers"].(map[string]any)
		if !assert.True(t, ok) {
			return
		}
		if !assert.Equal(t, Mask, headers["Cookie"]) {
			return
		}
		assert.Equal(t, "text/plain", headers["Accept"])
	})

	t.Run("will mask attributes added through WithAttrs", func(t *testing.T) {
		var buf bytes.Buffer
		var h slog.Handler = NewRedactHandler(slog.NewJSONHandler(&buf, nil), "token")
		h = h.WithGroup("g").WithAttrs([]slog.Attr{slog.String("token", "abc")})

		slog.New(h).Info("hello")

		assert.False(t, strings.Contains(buf.String(), "abc"))
	})
}
