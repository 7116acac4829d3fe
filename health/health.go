// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health evaluates liveness and readiness checks and reports
// them to orchestrator probes.
package health

import (
	"context"
	"time"

	"github.com/z5labs/keel/slogfield"
)

// Status is the outcome of a check or of a whole report.
type Status string

const (
	Healthy   Status = "Healthy"
	Unhealthy Status = "Unhealthy"
)

// Result is the outcome of running a single Checker.
type Result struct {
	Healthy     bool
	Description string
}

// Checker probes one aspect of the process or its dependencies.
type Checker interface {
	Check(context.Context) Result
}

// CheckerFunc is a functional implementation of Checker.
type CheckerFunc func(context.Context) Result

// Check implements the Checker interface.
func (f CheckerFunc) Check(ctx context.Context) Result {
	return f(ctx)
}

// Check is a named Checker.
type Check struct {
	Name    string
	Checker Checker
}

// Named pairs c with the name it is reported under.
func Named(name string, c Checker) Check {
	return Check{Name: name, Checker: c}
}

// Entry is the reported outcome of a single Check.
type Entry struct {
	Name        string  `json:"name"`
	Status      Status  `json:"status"`
	Description string  `json:"description,omitempty"`
	DurationMs  float64 `json:"duration_ms"`
}

// Report aggregates every Entry. It is Healthy only if every entry is.
type Report struct {
	Status     Status  `json:"status"`
	Checks     []Entry `json:"checks"`
	DurationMs float64 `json:"duration_ms"`
}

// Evaluate runs every check in order and times each one.
func Evaluate(ctx context.Context, checks ...Check) Report {
	start := time.Now()
	report := Report{
		Status: Healthy,
		Checks: make([]Entry, 0, len(checks)),
	}
	for _, c := range checks {
		checkStart := time.Now()
		res := c.Checker.Check(ctx)

		entry := Entry{
			Name:        c.Name,
			Status:      Healthy,
			Description: res.Description,
			DurationMs:  slogfield.Millis(time.Since(checkStart)),
		}
		if !res.Healthy {
			entry.Status = Unhealthy
			report.Status = Unhealthy
		}
		report.Checks = append(report.Checks, entry)
	}
	report.DurationMs = slogfield.Millis(time.Since(start))
	return report
}
