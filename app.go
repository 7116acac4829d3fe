// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package keel

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/z5labs/keel/internal/try"
	"github.com/z5labs/keel/lifecycle"

	"golang.org/x/sync/errgroup"
)

// AppFunc is a func variant of the [App] interface.
type AppFunc func(context.Context) error

// Run implements the [App] interface.
func (f AppFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// PanicError is returned by [Recover] when the wrapped [App] panics.
type PanicError = try.PanicError

// Recover will wrap the given [App] with panic recovery. A recovered
// panic is returned as a [PanicError].
func Recover(app App) App {
	return AppFunc(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

// WithSignalNotifications wraps a given [App] in an implementation
// that cancels the [context.Context] that's passed to app.Run if an [os.Signal]
// is received by the running process.
func WithSignalNotifications(app App, signals ...os.Signal) App {
	return AppFunc(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return app.Run(sigCtx)
	})
}

// Lifecycle groups the hooks run around an [App].
type Lifecycle struct {
	// PostRun is always executed regardless if the underlying [App]
	// returns an error or panics.
	PostRun lifecycle.Hook
}

// WithLifecycleHooks wraps a given [App] in an implementation
// that runs hooks around the execution of app.Run.
func WithLifecycleHooks(app App, lc Lifecycle) App {
	return AppFunc(func(ctx context.Context) (err error) {
		defer runPostRunHook(ctx, lc.PostRun, &err)
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

func runPostRunHook(ctx context.Context, hook lifecycle.Hook, err *error) {
	if hook == nil {
		return
	}

	// the app's context is usually cancelled by now
	hookErr := hook.Run(context.WithoutCancel(ctx))

	// errors.Join will not return an error if both
	// *err and hookErr are nil.
	*err = errors.Join(*err, hookErr)
}

// Concurrently runs every app at once. The first failure cancels the
// context of the rest.
func Concurrently(apps ...App) App {
	return AppFunc(func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, app := range apps {
			g.Go(func() (err error) {
				defer try.Recover(&err)
				return app.Run(gctx)
			})
		}
		return g.Wait()
	})
}
