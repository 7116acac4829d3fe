// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package correlation resolves and carries the identifier which ties
// together every log record, response header and error body produced
// while serving a single request.
package correlation

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// DefaultHeader is the header read from requests and echoed on responses.
const DefaultHeader = "X-Correlation-Id"

// ID is an opaque per request identifier.
type ID string

func (id ID) String() string {
	return string(id)
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the id stored by NewContext, if any.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(ctxKey{}).(ID)
	return id, ok && id != ""
}

// Resolver decides which id a request is served under.
type Resolver struct {
	header     string
	useTraceID bool
	newID      func() string
}

// Option configures a Resolver.
type Option func(*Resolver)

// Header overrides the header name. Empty names are ignored.
func Header(name string) Option {
	return func(r *Resolver) {
		if name == "" {
			return
		}
		r.header = http.CanonicalHeaderKey(name)
	}
}

// UseTraceID controls whether an active trace id is preferred
// over generating a new id when the request carries none.
func UseTraceID(b bool) Option {
	return func(r *Resolver) {
		r.useTraceID = b
	}
}

// Generator replaces the random id generator.
func Generator(f func() string) Option {
	return func(r *Resolver) {
		r.newID = f
	}
}

// NewResolver returns a Resolver reading DefaultHeader and
// preferring the active trace id.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		header:     DefaultHeader,
		useTraceID: true,
		newID:      NewRandom,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HeaderName is the canonical header the id is read from and written to.
func (r *Resolver) HeaderName() string {
	return r.header
}

// Resolve picks, in order, the first non-empty inbound header value,
// the trace id of the span active in ctx, or a freshly generated id.
func (r *Resolver) Resolve(ctx context.Context, h http.Header) ID {
	for _, v := range h.Values(r.header) {
		if v != "" {
			return ID(v)
		}
	}
	if r.useTraceID {
		sc := trace.SpanContextFromContext(ctx)
		if sc.HasTraceID() {
			return ID(sc.TraceID().String())
		}
	}
	return ID(r.newID())
}

// NewRandom returns 32 lowercase hex characters drawn from a random UUID.
func NewRandom() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
