// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package slogfield

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMillis(t *testing.T) {
	testCases := []struct {
		Name     string
		Duration time.Duration
		Expected float64
	}{
		{Name: "zero", Duration: 0, Expected: 0},
		{Name: "whole", Duration: 750 * time.Millisecond, Expected: 750},
		{Name: "fraction", Duration: 1500 * time.Microsecond, Expected: 1.5},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			assert.Equal(t, testCase.Expected, Millis(testCase.Duration))
		})
	}
}

func TestHeaders(t *testing.T) {
	t.Run("will render single and multi valued headers", func(t *testing.T) {
		h := http.Header{}
		h.Set("Accept", "application/json")
		h.Add("X-Multi", "a")
		h.Add("X-Multi", "b")

		attr := Headers(h)
		if !assert.Equal(t, "headers", attr.Key) {
			return
		}
		if !assert.Equal(t, slog.KindGroup, attr.Value.Kind()) {
			return
		}

		values := make(map[string]slog.Value)
		for _, a := range attr.Value.Group() {
			values[a.Key] = a.Value
		}
		if !assert.Equal(t, "application/json", values["Accept"].String()) {
			return
		}
		if !assert.Equal(t, []string{"a", "b"}, values["X-Multi"].Any()) {
			return
		}
	})
}
