// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/z5labs/keel/correlation"
	"github.com/z5labs/keel/internal/noop"
	"github.com/z5labs/keel/slogfield"
)

// ProblemContentType is the media type of an ErrorEnvelope body.
const ProblemContentType = "application/problem+json"

// Environment names the deployment environment.
type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
)

// IsDevelopment reports whether internal error details may be exposed.
func (e Environment) IsDevelopment() bool {
	switch strings.ToLower(string(e)) {
	case "development", "dev", "local":
		return true
	}
	return false
}

// ErrorEnvelope is the problem details body returned for unhandled failures.
type ErrorEnvelope struct {
	Type    string  `json:"type"`
	Title   string  `json:"title"`
	Status  int     `json:"status"`
	TraceID string  `json:"traceId"`
	Detail  *string `json:"detail,omitempty"`
}

// Translator turns failures raised further down the chain into responses.
// Caller cancellation becomes a bare 400. Anything else is logged and, if
// the response has not started, answered with a 500 ErrorEnvelope.
type Translator struct {
	log *slog.Logger
	env Environment
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// TranslatorLogHandler sets the handler failures are logged through.
// Records carry the request's correlation id.
func TranslatorLogHandler(h slog.Handler) TranslatorOption {
	return func(t *Translator) {
		t.log = slog.New(contextual(h))
	}
}

// TranslatorEnvironment sets the environment which decides whether
// error details are included in the envelope.
func TranslatorEnvironment(env Environment) TranslatorOption {
	return func(t *Translator) {
		t.env = env
	}
}

// NewTranslator returns a Translator for the production environment.
func NewTranslator(opts ...TranslatorOption) *Translator {
	t := &Translator{
		log: slog.New(noop.LogHandler{}),
		env: Production,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Handle implements the Stage interface.
func (t *Translator) Handle(w *Response, r *http.Request, next Next) error {
	err := invoke(next, w, r)
	if err == nil {
		return nil
	}

	ctx := r.Context()
	if errors.Is(err, http.ErrAbortHandler) {
		return err
	}
	if isCancellation(ctx, err) {
		t.log.DebugContext(
			ctx,
			"request cancelled by caller",
			slogfield.Path(r.URL.Path),
			slogfield.Error(err),
		)
		if !w.Started() {
			w.WriteHeader(http.StatusBadRequest)
		}
		return nil
	}

	id, _ := correlation.FromContext(ctx)
	t.log.ErrorContext(
		ctx,
		"unhandled error while serving request",
		slogfield.Path(r.URL.Path),
		slogfield.Error(err),
	)
	if w.Started() {
		return AbortError{Cause: err}
	}

	env := ErrorEnvelope{
		Type:    "https://httpstatuses.com/500",
		Title:   "An unexpected error occurred.",
		Status:  http.StatusInternalServerError,
		TraceID: id.String(),
	}
	if t.env.IsDevelopment() {
		detail := describe(err)
		env.Detail = &detail
	}

	w.Clear()
	w.Header().Set("Content-Type", ProblemContentType)
	w.WriteHeader(http.StatusInternalServerError)

	werr := json.NewEncoder(w).Encode(env)
	if werr != nil {
		t.log.DebugContext(ctx, "failed to write error envelope", slogfield.Error(werr))
	}
	return nil
}

func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func describe(err error) string {
	var perr PanicError
	if errors.As(err, &perr) && len(perr.Stack) > 0 {
		return err.Error() + "\n" + string(perr.Stack)
	}
	return err.Error()
}
