// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"

	"github.com/z5labs/keel/lifecycle"
)

// Alive is healthy for as long as the process can answer.
func Alive() Checker {
	return CheckerFunc(func(context.Context) Result {
		return Result{Healthy: true, Description: "Process is alive."}
	})
}

// Readiness mirrors the readiness of state.
func Readiness(state *lifecycle.State) Checker {
	return CheckerFunc(func(context.Context) Result {
		switch {
		case state.Stopping():
			return Result{Description: "Application is stopping; not ready."}
		case !state.Started():
			return Result{Description: "Application has not started yet."}
		case !state.Ready():
			return Result{Description: "Application warmup has not completed."}
		default:
			return Result{Healthy: true, Description: "Application is ready."}
		}
	})
}
