// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import "net/http"

var securityHeaders = [...]struct {
	key   string
	value string
}{
	{key: "X-Content-Type-Options", value: "nosniff"},
	{key: "X-Frame-Options", value: "DENY"},
	{key: "Referrer-Policy", value: "no-referrer"},
	{key: "Permissions-Policy", value: "geolocation=(), microphone=(), camera=()"},
}

// AddSecurityHeaders sets the baseline security headers which are not
// already present. Existing values always win.
func AddSecurityHeaders(h http.Header) {
	for _, sh := range securityHeaders {
		if _, exists := h[sh.key]; exists {
			continue
		}
		h.Set(sh.key, sh.value)
	}
}

// SecurityHeaders adds the baseline security headers to every response,
// including error responses, right before they start.
type SecurityHeaders struct{}

// Handle implements the Stage interface.
func (SecurityHeaders) Handle(w *Response, r *http.Request, next Next) error {
	w.OnStarting(AddSecurityHeaders)
	return next(w, r)
}
