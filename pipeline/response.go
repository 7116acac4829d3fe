// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"net/http"
)

// Response wraps the http.ResponseWriter of a single request so every
// stage can observe the status and whether the response has started.
// A response has started once its status line has been committed,
// after which status and headers are immutable.
type Response struct {
	w          http.ResponseWriter
	status     int
	written    int64
	started    bool
	onStarting []func(http.Header)

	// err is reported by a HandlerFunc served through a plain http.Handler.
	err error
}

// NewResponse wraps w.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// OnStarting registers f to run exactly once, right before the status
// line is committed. Callbacks run in registration order. Registering
// after the response has started is a no-op.
func (r *Response) OnStarting(f func(http.Header)) {
	if r.started {
		return
	}
	r.onStarting = append(r.onStarting, f)
}

// Started reports whether the status line has been committed.
func (r *Response) Started() bool {
	return r.started
}

// Status is the committed or pending status code, 200 by default.
func (r *Response) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Written is the number of body bytes written so far.
func (r *Response) Written() int64 {
	return r.written
}

// Clear drops every header and the pending status. It reports false,
// leaving the response untouched, once the response has started.
func (r *Response) Clear() bool {
	if r.started {
		return false
	}
	h := r.w.Header()
	for k := range h {
		delete(h, k)
	}
	r.status = 0
	return true
}

// Header implements the http.ResponseWriter interface.
func (r *Response) Header() http.Header {
	return r.w.Header()
}

// WriteHeader implements the http.ResponseWriter interface.
// Informational statuses pass straight through without starting the response.
func (r *Response) WriteHeader(code int) {
	if r.started {
		return
	}
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		r.w.WriteHeader(code)
		return
	}
	r.status = code
	r.start()
	r.w.WriteHeader(code)
}

// Write implements the http.ResponseWriter interface.
func (r *Response) Write(b []byte) (int, error) {
	if !r.started {
		r.WriteHeader(r.Status())
	}
	n, err := r.w.Write(b)
	r.written += int64(n)
	return n, err
}

// Flush implements the http.Flusher interface.
func (r *Response) Flush() {
	if !r.started {
		r.WriteHeader(r.Status())
	}
	_ = http.NewResponseController(r.w).Flush()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *Response) Unwrap() http.ResponseWriter {
	return r.w
}

func (r *Response) start() {
	r.started = true
	callbacks := r.onStarting
	r.onStarting = nil

	h := r.w.Header()
	for _, f := range callbacks {
		f(h)
	}
}

// finish commits the pending status if the handler never wrote anything,
// so OnStarting callbacks also run for empty responses.
func (r *Response) finish() {
	if r.started {
		return
	}
	r.WriteHeader(r.Status())
}
