// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield holds the attribute constructors shared by every
// log statement so field names stay consistent across packages.
package slogfield

import (
	"log/slog"
	"net/http"
	"time"
)

func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

func Strings(key string, values []string) slog.Attr {
	return slog.Any(key, values)
}

func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

func Uint(key string, n uint) slog.Attr {
	return slog.Uint64(key, uint64(n))
}

// CorrelationID is the key every request scoped record carries.
func CorrelationID(id string) slog.Attr {
	return slog.String("correlation_id", id)
}

func Method(m string) slog.Attr {
	return slog.String("method", m)
}

func Path(p string) slog.Attr {
	return slog.String("path", p)
}

func Status(code int) slog.Attr {
	return slog.Int("status", code)
}

func BytesWritten(n int64) slog.Attr {
	return slog.Int64("bytes_written", n)
}

// ElapsedMs renders d as fractional milliseconds.
func ElapsedMs(d time.Duration) slog.Attr {
	return slog.Float64("elapsed_ms", Millis(d))
}

func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

func DelayMs(d time.Duration) slog.Attr {
	return slog.Float64("delay_ms", Millis(d))
}

func Reason(r string) slog.Attr {
	return slog.String("reason", r)
}

// Headers renders every header as its own attribute inside a "headers" group.
func Headers(h http.Header) slog.Attr {
	attrs := make([]any, 0, len(h))
	for k, vs := range h {
		if len(vs) == 1 {
			attrs = append(attrs, slog.String(k, vs[0]))
			continue
		}
		attrs = append(attrs, slog.Any(k, vs))
	}
	return slog.Group("headers", attrs...)
}

// Millis converts d to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
