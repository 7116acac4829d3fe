// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fakeClock(elapsed time.Duration) func() time.Time {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	return func() time.Time {
		calls++
		if calls == 1 {
			return start
		}
		return start.Add(elapsed)
	}
}

func serveLatency(t *testing.T, elapsed time.Duration, path string, opts ...LatencyOption) []logRecord {
	t.Helper()

	var buf bytes.Buffer
	opts = append([]LatencyOption{LatencyLogHandler(newLogHandler(&buf))}, opts...)
	ll, err := NewLatencyLogger(opts...)
	if !assert.Nil(t, err) {
		t.FailNow()
	}
	ll.now = fakeClock(elapsed)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	New(inner, ll).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, path, nil))
	return readRecords(t, &buf)
}

func TestOutcome_Level(t *testing.T) {
	testCases := []struct {
		Name     string
		Elapsed  time.Duration
		Expected slog.Level
	}{
		{Name: "well below", Elapsed: 10 * time.Millisecond, Expected: slog.LevelInfo},
		{Name: "just below", Elapsed: 749 * time.Millisecond, Expected: slog.LevelInfo},
		{Name: "at threshold", Elapsed: 750 * time.Millisecond, Expected: slog.LevelWarn},
		{Name: "above", Elapsed: 2 * time.Second, Expected: slog.LevelWarn},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			o := Outcome{Elapsed: testCase.Elapsed}
			assert.Equal(t, testCase.Expected, o.Level(DefaultSlowRequestThreshold))
		})
	}
}

func TestLatencyLogger_Handle(t *testing.T) {
	t.Run("will log at warn", func(t *testing.T) {
		t.Run("if the request took exactly the threshold", func(t *testing.T) {
			records := serveLatency(t, 750*time.Millisecond, "/orders")

			record, ok := findRecord(records, "request completed")
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, "WARN", record["level"]) {
				return
			}
			if !assert.Equal(t, float64(750), record["elapsed_ms"]) {
				return
			}
			if !assert.Equal(t, "PUT", record["method"]) {
				return
			}
			assert.Equal(t, float64(http.StatusAccepted), record["status"])
		})
	})

	t.Run("will log at info", func(t *testing.T) {
		t.Run("if the request finished one millisecond below the threshold", func(t *testing.T) {
			records := serveLatency(t, 749*time.Millisecond, "/orders")

			record, ok := findRecord(records, "request completed")
			if !assert.True(t, ok) {
				return
			}
			assert.Equal(t, "INFO", record["level"])
		})

		t.Run("if a custom threshold is not reached", func(t *testing.T) {
			records := serveLatency(t, 900*time.Millisecond, "/orders", SlowRequestThreshold(time.Second))

			record, ok := findRecord(records, "request completed")
			if !assert.True(t, ok) {
				return
			}
			assert.Equal(t, "INFO", record["level"])
		})
	})

	t.Run("will not log", func(t *testing.T) {
		t.Run("if the path is below a suppressed prefix", func(t *testing.T) {
			records := serveLatency(t, time.Millisecond, "/health/ready", SuppressPathPrefixes("/health"))
			assert.Empty(t, records)
		})

		t.Run("if the path equals a suppressed prefix", func(t *testing.T) {
			records := serveLatency(t, time.Millisecond, "/metrics", SuppressPathPrefixes("/metrics/"))
			assert.Empty(t, records)
		})
	})

	t.Run("will still log", func(t *testing.T) {
		t.Run("if the path only shares a string prefix with a suppressed prefix", func(t *testing.T) {
			records := serveLatency(t, time.Millisecond, "/healthz", SuppressPathPrefixes("/health"))
			assert.Len(t, records, 1)
		})
	})

	t.Run("will log the number of body bytes written", func(t *testing.T) {
		var buf bytes.Buffer
		ll, err := NewLatencyLogger(LatencyLogHandler(newLogHandler(&buf)))
		if !assert.Nil(t, err) {
			return
		}

		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "hello, ")
			_, _ = io.WriteString(w, "world")
		})
		New(inner, ll).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		record, ok := findRecord(readRecords(t, &buf), "request completed")
		if !assert.True(t, ok) {
			return
		}
		assert.Equal(t, float64(12), record["bytes_written"])
	})

	t.Run("will log request headers", func(t *testing.T) {
		t.Run("if header logging is enabled", func(t *testing.T) {
			var buf bytes.Buffer
			ll, err := NewLatencyLogger(
				LatencyLogHandler(newLogHandler(&buf)),
				LogRequestHeaders(true),
			)
			if !assert.Nil(t, err) {
				return
			}

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept", "text/plain")
			New(http.NotFoundHandler(), ll).ServeHTTP(httptest.NewRecorder(), req)

			record, ok := findRecord(readRecords(t, &buf), "request completed")
			if !assert.True(t, ok) {
				return
			}
			headers, ok := record["headers"].(map[string]any)
			if !assert.True(t, ok) {
				return
			}
			assert.Equal(t, "text/plain", headers["Accept"])
		})
	})

	t.Run("will pass errors through", func(t *testing.T) {
		t.Run("and log them at debug", func(t *testing.T) {
			var buf bytes.Buffer
			ll, err := NewLatencyLogger(LatencyLogHandler(newLogHandler(&buf)))
			if !assert.Nil(t, err) {
				return
			}

			failure := errors.New("failed")
			next := func(w *Response, r *http.Request) error { return failure }

			err = ll.Handle(NewResponse(httptest.NewRecorder()), httptest.NewRequest(http.MethodGet, "/", nil), next)
			if !assert.ErrorIs(t, err, failure) {
				return
			}

			records := readRecords(t, &buf)
			if !assert.Len(t, records, 1) {
				return
			}
			assert.Equal(t, "DEBUG", records[0]["level"])
		})
	})
}
