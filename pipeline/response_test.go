// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponse(t *testing.T) {
	t.Run("will run starting callbacks once", func(t *testing.T) {
		rec := httptest.NewRecorder()
		w := NewResponse(rec)

		calls := 0
		w.OnStarting(func(h http.Header) {
			calls++
			h.Set("X-Calls", "1")
		})

		_, _ = io.WriteString(w, "a")
		_, _ = io.WriteString(w, "b")
		w.WriteHeader(http.StatusTeapot)

		if !assert.Equal(t, 1, calls) {
			return
		}
		if !assert.Equal(t, http.StatusOK, w.Status()) {
			return
		}
		if !assert.Equal(t, int64(2), w.Written()) {
			return
		}
		assert.Equal(t, "1", rec.Header().Get("X-Calls"))
	})

	t.Run("will not start", func(t *testing.T) {
		t.Run("if an informational status is written", func(t *testing.T) {
			w := NewResponse(httptest.NewRecorder())
			w.WriteHeader(http.StatusEarlyHints)

			assert.False(t, w.Started())
		})
	})

	t.Run("will refuse to clear", func(t *testing.T) {
		t.Run("if the response started", func(t *testing.T) {
			rec := httptest.NewRecorder()
			w := NewResponse(rec)
			w.Header().Set("X-Kept", "yes")
			w.WriteHeader(http.StatusCreated)

			if !assert.False(t, w.Clear()) {
				return
			}
			assert.Equal(t, "yes", rec.Header().Get("X-Kept"))
		})
	})

	t.Run("will clear headers and status", func(t *testing.T) {
		t.Run("if the response has not started", func(t *testing.T) {
			rec := httptest.NewRecorder()
			w := NewResponse(rec)
			w.Header().Set("X-Dropped", "yes")

			if !assert.True(t, w.Clear()) {
				return
			}
			assert.Empty(t, rec.Header())
		})
	})

	t.Run("will ignore callbacks registered after starting", func(t *testing.T) {
		w := NewResponse(httptest.NewRecorder())
		w.Flush()

		called := false
		w.OnStarting(func(http.Header) { called = true })
		w.WriteHeader(http.StatusOK)

		if !assert.True(t, w.Started()) {
			return
		}
		assert.False(t, called)
	})

	t.Run("will expose the underlying writer", func(t *testing.T) {
		rec := httptest.NewRecorder()
		w := NewResponse(rec)
		assert.Same(t, rec, w.Unwrap())
	})
}

func TestAddSecurityHeaders(t *testing.T) {
	t.Run("will be idempotent", func(t *testing.T) {
		once := http.Header{}
		AddSecurityHeaders(once)

		twice := http.Header{}
		AddSecurityHeaders(twice)
		AddSecurityHeaders(twice)

		if !assert.Equal(t, once, twice) {
			return
		}
		assert.Len(t, once, 4)
	})

	t.Run("will not overwrite existing values", func(t *testing.T) {
		h := http.Header{}
		h.Set("Referrer-Policy", "same-origin")
		AddSecurityHeaders(h)

		if !assert.Equal(t, []string{"same-origin"}, h.Values("Referrer-Policy")) {
			return
		}
		assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	})
}

func TestEnvironment_IsDevelopment(t *testing.T) {
	testCases := []struct {
		Env      Environment
		Expected bool
	}{
		{Env: "development", Expected: true},
		{Env: "Dev", Expected: true},
		{Env: "LOCAL", Expected: true},
		{Env: "production", Expected: false},
		{Env: "staging", Expected: false},
		{Env: "", Expected: false},
	}

	for _, testCase := range testCases {
		t.Run(string(testCase.Env), func(t *testing.T) {
			assert.Equal(t, testCase.Expected, testCase.Env.IsDevelopment())
		})
	}
}
