// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fixedpool runs a fixed set of long lived tasks together.
package fixedpool

import (
	"context"
	"errors"
	"sync"

	"github.com/z5labs/keel/internal/try"
)

// Task is a unit of work which should return once ctx is done.
type Task func(context.Context) error

// Wait runs every task in its own goroutine and blocks until all of them
// return. The first failure, including a panic, cancels the context shared
// by the remaining tasks. Every failure is joined into the returned error.
func Wait(ctx context.Context, tasks ...Task) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := run(ctx, task)
			if err == nil {
				return
			}
			cancel(err)

			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

func run(ctx context.Context, t Task) (err error) {
	defer try.Recover(&err)
	return t(ctx)
}
