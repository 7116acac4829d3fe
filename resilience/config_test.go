// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	t.Run("will accept the defaults", func(t *testing.T) {
		assert.Nil(t, DefaultConfig().Validate())
	})

	testCases := []struct {
		Name   string
		Mutate func(*Config)
		Field  string
	}{
		{Name: "zero timeout", Mutate: func(c *Config) { c.TimeoutMs = 0 }, Field: "outbound_http.timeout_ms"},
		{Name: "timeout above 30s", Mutate: func(c *Config) { c.TimeoutMs = 30001 }, Field: "outbound_http.timeout_ms"},
		{Name: "negative retries", Mutate: func(c *Config) { c.MaxRetryAttempts = -1 }, Field: "outbound_http.max_retry_attempts"},
		{Name: "too many retries", Mutate: func(c *Config) { c.MaxRetryAttempts = 6 }, Field: "outbound_http.max_retry_attempts"},
		{Name: "zero base delay", Mutate: func(c *Config) { c.BaseDelayMs = 0 }, Field: "outbound_http.base_delay_ms"},
		{Name: "base delay above 5s", Mutate: func(c *Config) { c.BaseDelayMs = 5001 }, Field: "outbound_http.base_delay_ms"},
		{
			Name: "breaker which never trips",
			Mutate: func(c *Config) {
				c.CircuitBreaker.Enabled = true
				c.CircuitBreaker.TripAfter = 0
			},
			Field: "outbound_http.circuit_breaker.trip_after",
		},
	}

	for _, testCase := range testCases {
		t.Run("will return a ValidationError if "+testCase.Name, func(t *testing.T) {
			cfg := DefaultConfig()
			testCase.Mutate(&cfg)

			err := cfg.Validate()

			var verr ValidationError
			if !assert.ErrorAs(t, err, &verr) {
				return
			}
			if !assert.Equal(t, testCase.Field, verr.Field) {
				return
			}
			assert.NotEmpty(t, verr.Error())
		})
	}

	t.Run("will accept the range boundaries", func(t *testing.T) {
		cfg := Config{TimeoutMs: 30000, MaxRetryAttempts: 5, BaseDelayMs: 5000}
		if !assert.Nil(t, cfg.Validate()) {
			return
		}

		cfg = Config{TimeoutMs: 1, MaxRetryAttempts: 0, BaseDelayMs: 1}
		assert.Nil(t, cfg.Validate())
	})
}

func TestConfig_Delay(t *testing.T) {
	cfg := Config{BaseDelayMs: 200}

	t.Run("will stay within the jitter bounds", func(t *testing.T) {
		testCases := []struct {
			Attempt int
			Nominal time.Duration
		}{
			{Attempt: 1, Nominal: 200 * time.Millisecond},
			{Attempt: 2, Nominal: 400 * time.Millisecond},
			{Attempt: 3, Nominal: 800 * time.Millisecond},
			{Attempt: 5, Nominal: 3200 * time.Millisecond},
		}

		jitters := []float64{0, 0.25, 0.5, 0.999999}
		for _, testCase := range testCases {
			for _, jitter := range jitters {
				d := cfg.Delay(testCase.Attempt, jitter)
				if !assert.GreaterOrEqual(t, d, testCase.Nominal) {
					return
				}
				if !assert.Less(t, d, testCase.Nominal*3/2) {
					return
				}
			}
		}
	})

	t.Run("will return the nominal delay", func(t *testing.T) {
		t.Run("if jitter is zero", func(t *testing.T) {
			assert.Equal(t, 400*time.Millisecond, cfg.Delay(2, 0))
		})

		t.Run("if jitter is negative", func(t *testing.T) {
			assert.Equal(t, 200*time.Millisecond, cfg.Delay(1, -3))
		})

		t.Run("if attempt is below one", func(t *testing.T) {
			assert.Equal(t, 200*time.Millisecond, cfg.Delay(0, 0))
		})
	})

	t.Run("will scale by half the jitter", func(t *testing.T) {
		assert.Equal(t, 250*time.Millisecond, cfg.Delay(1, 0.5))
	})

	t.Run("will stay below 1.5x", func(t *testing.T) {
		t.Run("if jitter is one or more", func(t *testing.T) {
			assert.Less(t, cfg.Delay(1, 1), 300*time.Millisecond)
		})
	})

	t.Run("will be deterministic", func(t *testing.T) {
		assert.Equal(t, cfg.Delay(3, 0.42), cfg.Delay(3, 0.42))
	})
}
