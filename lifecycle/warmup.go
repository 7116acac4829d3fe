// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/z5labs/keel/internal/noop"
	"github.com/z5labs/keel/slogfield"
)

// DefaultWarmupDelay is the length of the placeholder warmup task.
const DefaultWarmupDelay = 2 * time.Second

// Task is the work performed before a process is marked ready.
type Task func(context.Context) error

// Delay returns a Task which waits d or until ctx is done.
func Delay(d time.Duration) Task {
	return func(ctx context.Context) error {
		t := time.NewTimer(d)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
}

// WarmupError wraps a warmup failure which must stop the process.
type WarmupError struct {
	Cause error
}

func (e WarmupError) Error() string {
	return fmt.Sprintf("startup warmup failed: %s", e.Cause)
}

func (e WarmupError) Unwrap() error {
	return e.Cause
}

// Warmup runs its task once after the process has started and marks
// the State ready when it succeeds.
type Warmup struct {
	task Task
	log  *slog.Logger
	ran  atomic.Bool
}

// WarmupOption configures a Warmup.
type WarmupOption func(*Warmup)

// WarmupLogHandler sets the handler progress is logged through.
func WarmupLogHandler(h slog.Handler) WarmupOption {
	return func(w *Warmup) {
		w.log = slog.New(h)
	}
}

// NewWarmup returns a Warmup running task. A nil task waits DefaultWarmupDelay.
func NewWarmup(task Task, opts ...WarmupOption) *Warmup {
	if task == nil {
		task = Delay(DefaultWarmupDelay)
	}
	w := &Warmup{
		task: task,
		log:  slog.New(noop.LogHandler{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run waits for state to start, then runs the task. Success marks the
// state ready. If ctx is cancelled first the warmup ends quietly and
// readiness is left untouched. Any other failure is returned as a
// WarmupError and readiness stays false. Only the first call does work.
func (w *Warmup) Run(ctx context.Context, state *State) error {
	if !w.ran.CompareAndSwap(false, true) {
		return nil
	}

	err := state.WaitStarted(ctx)
	if err != nil {
		w.log.InfoContext(ctx, "startup warmup skipped because shutdown began before start")
		return nil
	}

	start := time.Now()
	w.log.InfoContext(ctx, "startup warmup beginning")
	err = w.task(ctx)
	if err == nil {
		if !state.MarkReady() {
			w.log.InfoContext(
				ctx,
				"startup warmup completed but the process is stopping",
				slogfield.Duration("elapsed", time.Since(start)),
			)
			return nil
		}
		w.log.InfoContext(ctx, "startup warmup complete; ready", slogfield.Duration("elapsed", time.Since(start)))
		return nil
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		w.log.InfoContext(ctx, "startup warmup canceled")
		return nil
	}

	w.log.ErrorContext(ctx, "startup warmup failed", slogfield.Error(err))
	return WarmupError{Cause: err}
}
