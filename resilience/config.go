// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resilience

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Config governs every outbound call made through a Policy. Backoff is
// always exponential and always jittered.
type Config struct {
	// TimeoutMs bounds each individual attempt.
	TimeoutMs int `config:"timeout_ms"`

	// MaxRetryAttempts is the number of retries after the first attempt.
	MaxRetryAttempts int `config:"max_retry_attempts"`

	// BaseDelayMs is the nominal wait before the first retry.
	BaseDelayMs int `config:"base_delay_ms"`

	CircuitBreaker CircuitBreakerConfig `config:"circuit_breaker"`
}

// CircuitBreakerConfig enables an optional breaker wrapped around each attempt.
type CircuitBreakerConfig struct {
	Enabled     bool          `config:"enabled"`
	TripAfter   uint32        `config:"trip_after"`
	OpenTimeout time.Duration `config:"open_timeout"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TimeoutMs:        2000,
		MaxRetryAttempts: 2,
		BaseDelayMs:      200,
		CircuitBreaker: CircuitBreakerConfig{
			TripAfter:   5,
			OpenTimeout: 60 * time.Second,
		},
	}
}

// AttemptTimeout is TimeoutMs as a time.Duration.
func (c Config) AttemptTimeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// BaseDelay is BaseDelayMs as a time.Duration.
func (c Config) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// ValidationError reports a config field outside its allowed range.
type ValidationError struct {
	Field string
	Value int64
	Min   int64
	Max   int64
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s must be within [%d, %d], got %d", e.Field, e.Min, e.Max, e.Value)
}

// Validate checks every field is within range.
func (c Config) Validate() error {
	var errs []error
	check := func(field string, v, min, max int64) {
		if v < min || v > max {
			errs = append(errs, ValidationError{Field: field, Value: v, Min: min, Max: max})
		}
	}
	check("outbound_http.timeout_ms", int64(c.TimeoutMs), 1, 30000)
	check("outbound_http.max_retry_attempts", int64(c.MaxRetryAttempts), 0, 5)
	check("outbound_http.base_delay_ms", int64(c.BaseDelayMs), 1, 5000)
	if c.CircuitBreaker.Enabled {
		check("outbound_http.circuit_breaker.trip_after", int64(c.CircuitBreaker.TripAfter), 1, math.MaxUint32)
		check("outbound_http.circuit_breaker.open_timeout", int64(c.CircuitBreaker.OpenTimeout), 1, math.MaxInt64)
	}
	return errors.Join(errs...)
}

// Delay is the wait before retry number attempt, counting from 1. The
// nominal BaseDelay×2^(attempt-1) is scaled by 1+jitter/2 so the result
// lies in [nominal, 1.5×nominal). jitter is clamped to [0, 1).
func (c Config) Delay(attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch {
	case jitter < 0 || math.IsNaN(jitter):
		jitter = 0
	case jitter >= 1:
		jitter = math.Nextafter(1, 0)
	}

	nominal := float64(c.BaseDelay()) * math.Pow(2, float64(attempt-1))
	d := nominal * (1 + jitter/2)
	if upper := nominal * 1.5; d >= upper {
		d = math.Nextafter(upper, 0)
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
