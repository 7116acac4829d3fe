// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWarmup_Run(t *testing.T) {
	t.Run("will mark the state ready", func(t *testing.T) {
		t.Run("if the task succeeds after start", func(t *testing.T) {
			s := NewState()
			s.MarkStarted()

			w := NewWarmup(Delay(time.Millisecond))
			err := w.Run(context.Background(), s)
			if !assert.Nil(t, err) {
				return
			}
			assert.True(t, s.Ready())
		})

		t.Run("only after the state started", func(t *testing.T) {
			s := NewState()
			w := NewWarmup(func(ctx context.Context) error { return nil })

			errCh := make(chan error, 1)
			go func() {
				errCh <- w.Run(context.Background(), s)
			}()

			time.Sleep(10 * time.Millisecond)
			if !assert.False(t, s.Ready()) {
				return
			}

			s.MarkStarted()
			select {
			case err := <-errCh:
				if !assert.Nil(t, err) {
					return
				}
			case <-time.After(time.Second):
				t.Error("warmup did not finish")
				return
			}
			assert.True(t, s.Ready())
		})
	})

	t.Run("will return nil and leave readiness false", func(t *testing.T) {
		t.Run("if shutdown cancels the task", func(t *testing.T) {
			var buf bytes.Buffer
			s := NewState()
			s.MarkStarted()

			ctx, cancel := context.WithCancel(context.Background())
			task := func(ctx context.Context) error {
				cancel()
				<-ctx.Done()
				return ctx.Err()
			}

			w := NewWarmup(task, WarmupLogHandler(slog.NewJSONHandler(&buf, nil)))
			err := w.Run(ctx, s)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.False(t, s.Ready()) {
				return
			}
			assert.False(t, strings.Contains(buf.String(), `"level":"ERROR"`))
		})

		t.Run("if stopping began while the task ran", func(t *testing.T) {
			s := NewState()
			s.MarkStarted()

			task := func(ctx context.Context) error {
				s.MarkStopping()
				return nil
			}

			err := NewWarmup(task).Run(context.Background(), s)
			if !assert.Nil(t, err) {
				return
			}
			assert.False(t, s.Ready())
		})

		t.Run("if shutdown began before start", func(t *testing.T) {
			s := NewState()
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			called := false
			err := NewWarmup(func(ctx context.Context) error {
				called = true
				return nil
			}).Run(ctx, s)
			if !assert.Nil(t, err) {
				return
			}
			assert.False(t, called)
		})
	})

	t.Run("will return a WarmupError", func(t *testing.T) {
		t.Run("if the task fails", func(t *testing.T) {
			s := NewState()
			s.MarkStarted()

			taskErr := errors.New("cache priming failed")
			err := NewWarmup(func(ctx context.Context) error {
				return taskErr
			}).Run(context.Background(), s)

			var werr WarmupError
			if !assert.ErrorAs(t, err, &werr) {
				return
			}
			if !assert.ErrorIs(t, err, taskErr) {
				return
			}
			if !assert.NotEmpty(t, werr.Error()) {
				return
			}
			assert.False(t, s.Ready())
		})

		t.Run("if the task returns a cancellation error without shutdown", func(t *testing.T) {
			s := NewState()
			s.MarkStarted()

			err := NewWarmup(func(ctx context.Context) error {
				return context.Canceled
			}).Run(context.Background(), s)

			var werr WarmupError
			assert.ErrorAs(t, err, &werr)
		})
	})

	t.Run("will run the task once", func(t *testing.T) {
		s := NewState()
		s.MarkStarted()

		calls := 0
		w := NewWarmup(func(ctx context.Context) error {
			calls++
			return nil
		})

		_ = w.Run(context.Background(), s)
		_ = w.Run(context.Background(), s)
		assert.Equal(t, 1, calls)
	})
}
