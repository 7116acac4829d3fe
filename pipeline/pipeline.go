// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pipeline wraps an http.Handler in an ordered chain of stages
// which attach a correlation id, translate failures into a stable error
// contract, log request latency and inject security headers.
package pipeline

import (
	"fmt"
	"net/http"

	"github.com/z5labs/keel/internal/try"
)

// PanicError is a panic recovered from a downstream stage or the inner handler.
type PanicError = try.PanicError

// Next invokes the remainder of the chain.
type Next func(*Response, *http.Request) error

// Stage is a single step in a Pipeline. A stage calls next at most once.
// A non-nil error returned from a stage means the request failed and has
// not yet been answered.
type Stage interface {
	Handle(w *Response, r *http.Request, next Next) error
}

// StageFunc is a functional implementation of Stage.
type StageFunc func(*Response, *http.Request, Next) error

// Handle implements the Stage interface.
func (f StageFunc) Handle(w *Response, r *http.Request, next Next) error {
	return f(w, r, next)
}

// AbortError is returned when a failure happens after the response has
// started and the only remaining option is to drop the connection.
type AbortError struct {
	Cause error
}

func (e AbortError) Error() string {
	return fmt.Sprintf("aborting response already in progress: %s", e.Cause)
}

func (e AbortError) Unwrap() error {
	return e.Cause
}

// Pipeline is an http.Handler running a fixed chain of stages
// in front of an inner handler.
type Pipeline struct {
	next Next
}

// New composes stages, outermost first, around inner. The chain is
// built once and shared by every request.
func New(inner http.Handler, stages ...Stage) *Pipeline {
	next := serveInner(inner)
	for i := len(stages) - 1; i >= 0; i-- {
		next = bind(stages[i], next)
	}
	return &Pipeline{next: next}
}

func bind(s Stage, next Next) Next {
	return func(w *Response, r *http.Request) error {
		return s.Handle(w, r, next)
	}
}

// Handler is implemented by inner handlers which report failures as
// errors instead of panicking.
type Handler interface {
	ServeHTTPE(http.ResponseWriter, *http.Request) error
}

// HandlerFunc is a functional implementation of Handler.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// ServeHTTPE implements the Handler interface.
func (f HandlerFunc) ServeHTTPE(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// ServeHTTP implements the http.Handler interface. When served below a
// Pipeline, for example through an http.ServeMux, a failure is handed
// back to the Pipeline's stages. Elsewhere it is answered with a bare 500.
func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := f(w, r)
	if err == nil {
		return
	}
	if resp, ok := w.(*Response); ok {
		resp.err = err
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func serveInner(h http.Handler) Next {
	eh, ok := h.(Handler)
	return func(w *Response, r *http.Request) (err error) {
		defer try.Recover(&err)
		if ok {
			return eh.ServeHTTPE(w, r)
		}
		h.ServeHTTP(w, r)
		err, w.err = w.err, nil
		return err
	}
}

// ServeHTTP implements the http.Handler interface. An error escaping
// every stage aborts the connection.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, ok := w.(*Response)
	if !ok {
		resp = NewResponse(w)
	}

	err := p.next(resp, r)
	if err != nil {
		panic(http.ErrAbortHandler)
	}
	resp.finish()
}

// invoke calls next and converts any panic raised below into an error.
func invoke(next Next, w *Response, r *http.Request) (err error) {
	defer try.Recover(&err)
	return next(w, r)
}
