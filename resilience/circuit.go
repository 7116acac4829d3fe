// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resilience

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/z5labs/keel/slogfield"

	"github.com/sony/gobreaker"
)

var errServerStatus = errors.New("server error status")

func newBreaker(name string, cfg CircuitBreakerConfig, log *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.TripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				log.Error("circuit has been opened", slogfield.Duration("open_timeout", cfg.OpenTimeout))
			case gobreaker.StateHalfOpen:
				log.Warn("circuit is now half open and letting a request through")
			case gobreaker.StateClosed:
				log.Info("circuit has been closed")
			}
		},
	})
}

// breakerCall counts transport failures and 5xx responses against the
// breaker. A 5xx response is still handed back to the caller.
func breakerCall(ctx context.Context, cb *gobreaker.CircuitBreaker, call Call) (*http.Response, error) {
	v, err := cb.Execute(func() (interface{}, error) {
		resp, err := call(ctx)
		if err != nil {
			return nil, err
		}
		if resp != nil && resp.StatusCode >= 500 {
			return resp, errServerStatus
		}
		return resp, nil
	})
	resp, _ := v.(*http.Response)
	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
