// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"net/http"

	"github.com/z5labs/keel/correlation"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Correlation resolves the request's correlation id, stores it on the
// request context and echoes it on the response header.
type Correlation struct {
	resolver *correlation.Resolver
}

// NewCorrelation returns a Correlation stage using r.
func NewCorrelation(r *correlation.Resolver) Correlation {
	return Correlation{resolver: r}
}

// Handle implements the Stage interface.
func (c Correlation) Handle(w *Response, r *http.Request, next Next) error {
	ctx := r.Context()
	id := c.resolver.Resolve(ctx, r.Header)

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("correlation.id", id.String()))

	header := c.resolver.HeaderName()
	w.OnStarting(func(h http.Header) {
		h.Set(header, id.String())
	})
	return next(w, r.WithContext(correlation.NewContext(ctx, id)))
}
