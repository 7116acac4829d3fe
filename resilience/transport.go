// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resilience

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type roundTripper struct {
	policy *Policy
	base   http.RoundTripper
}

// RoundTripper exposes p as an http.RoundTripper sending each attempt
// through base. Request bodies are replayed with Request.GetBody; a body
// which can not be replayed is sent exactly once.
func (p *Policy) RoundTripper(base http.RoundTripper) http.RoundTripper {
	return &roundTripper{policy: p, base: base}
}

// RoundTrip implements the http.RoundTripper interface.
func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
	maxRetries := rt.policy.cfg.MaxRetryAttempts
	if !replayable {
		maxRetries = 0
	}

	first := true
	call := func(ctx context.Context) (*http.Response, error) {
		r := req.Clone(ctx)
		if !first && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}
		first = false
		return rt.base.RoundTrip(r)
	}
	resp, err := rt.policy.execute(req.Context(), call, maxRetries)
	if err != nil {
		discard(resp)
		return nil, err
	}
	return resp, nil
}

// Client returns an http.Client whose transport is governed by p and
// instrumented with OpenTelemetry. The client sets no overall timeout.
func (p *Policy) Client() *http.Client {
	return &http.Client{
		Transport: p.RoundTripper(otelhttp.NewTransport(p.base)),
	}
}

// NewClient is shorthand for New followed by Policy.Client.
func NewClient(cfg Config, opts ...Option) (*http.Client, error) {
	p, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return p.Client(), nil
}
