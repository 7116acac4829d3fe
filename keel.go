// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package keel

import (
	"context"
	"fmt"

	"github.com/z5labs/keel/config"
	"github.com/z5labs/keel/lifecycle"
)

// App represents the entry point for user specific code.
type App interface {
	Run(context.Context) error
}

// AppBuilder initializes an [App] from its config.
type AppBuilder[T any] interface {
	Build(ctx context.Context, cfg T) (App, error)
}

// AppBuilderFunc is a functional implementation of
// the [AppBuilder] interface.
type AppBuilderFunc[T any] func(context.Context, T) (App, error)

// Build implements the [AppBuilder] interface.
func (f AppBuilderFunc[T]) Build(ctx context.Context, cfg T) (App, error) {
	return f(ctx, cfg)
}

// Validator is implemented by configs which can reject their own values.
type Validator interface {
	Validate() error
}

// Run executes the application. It reads the provided config sources,
// unmarshals them into T, validates the result if T implements [Validator],
// builds the [App] and, lastly, runs it.
//
// The context passed to the builder carries a [lifecycle.Context]. Every
// post run hook registered on it runs after the [App] returns, even if it fails.
func Run[T any](ctx context.Context, builder AppBuilder[T], srcs ...config.Source) error {
	m, err := config.Read(srcs...)
	if err != nil {
		return ConfigReadError{Cause: err}
	}

	var cfg T
	err = m.Unmarshal(&cfg)
	if err != nil {
		return ConfigUnmarshalError{Cause: err}
	}

	if v, ok := any(cfg).(Validator); ok {
		err = v.Validate()
		if err != nil {
			return ConfigValidateError{Cause: err}
		}
	}

	lc := &lifecycle.Context{}
	app, err := builder.Build(lifecycle.NewContext(ctx, lc), cfg)
	if err != nil {
		postErr := lc.PostRun().Run(ctx)
		if postErr != nil {
			return AppBuildError{Cause: fmt.Errorf("%w; post run: %w", err, postErr)}
		}
		return AppBuildError{Cause: err}
	}

	app = WithLifecycleHooks(app, Lifecycle{
		PostRun: lc.PostRun(),
	})

	err = app.Run(ctx)
	if err != nil {
		return AppRunError{Cause: err}
	}
	return nil
}

// ConfigReadError is returned when a config source fails to apply.
type ConfigReadError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigReadError) Error() string {
	return fmt.Sprintf("failed to read config source(s): %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigReadError) Unwrap() error {
	return e.Cause
}

// ConfigUnmarshalError is returned when the read config can not be decoded into the config type.
type ConfigUnmarshalError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigUnmarshalError) Error() string {
	return fmt.Sprintf("failed to unmarshal read config source(s) into custom type: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigUnmarshalError) Unwrap() error {
	return e.Cause
}

// ConfigValidateError is returned when the decoded config rejects its own values.
type ConfigValidateError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigValidateError) Error() string {
	return fmt.Sprintf("invalid config: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigValidateError) Unwrap() error {
	return e.Cause
}

// AppBuildError
type AppBuildError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e AppBuildError) Error() string {
	return fmt.Sprintf("failed to build app: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AppBuildError) Unwrap() error {
	return e.Cause
}

// AppRunError
type AppRunError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e AppRunError) Error() string {
	return fmt.Sprintf("failed to run app: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AppRunError) Unwrap() error {
	return e.Cause
}
