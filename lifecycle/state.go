// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle tracks whether a process has started, is ready to
// serve traffic or is stopping, and runs the hooks and warmup work tied
// to those transitions.
package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
)

// Phase is the coarse lifecycle position of the process.
type Phase int

const (
	NotStarted Phase = iota
	Started
	Stopping
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not_started"
	case Started:
		return "started"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

const (
	startedBit uint32 = 1 << iota
	stoppingBit
	readyBit
)

// State holds the started, stopping and ready flags in a single atomic
// word so no reader can observe ready alongside not started or stopping.
// Reads never block. The zero value is ready to use.
type State struct {
	bits atomic.Uint32

	startedOnce sync.Once
	started     chan struct{}
}

// NewState returns a State in the NotStarted phase.
func NewState() *State {
	return &State{}
}

func (s *State) startedChan() chan struct{} {
	s.startedOnce.Do(func() {
		s.started = make(chan struct{})
	})
	return s.started
}

// MarkStarted moves NotStarted to Started. It reports false if the state
// already started or began stopping.
func (s *State) MarkStarted() bool {
	for {
		old := s.bits.Load()
		if old&(startedBit|stoppingBit) != 0 {
			return false
		}
		if s.bits.CompareAndSwap(old, old|startedBit) {
			close(s.startedChan())
			return true
		}
	}
}

// MarkStopping sets stopping and clears ready in one step. It reports
// false if the state was already stopping.
func (s *State) MarkStopping() bool {
	for {
		old := s.bits.Load()
		if old&stoppingBit != 0 {
			return false
		}
		if s.bits.CompareAndSwap(old, (old|stoppingBit)&^readyBit) {
			return true
		}
	}
}

// MarkReady sets ready. It only succeeds once started and before stopping.
func (s *State) MarkReady() bool {
	for {
		old := s.bits.Load()
		if old&startedBit == 0 || old&(stoppingBit|readyBit) != 0 {
			return false
		}
		if s.bits.CompareAndSwap(old, old|readyBit) {
			return true
		}
	}
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	bits := s.bits.Load()
	switch {
	case bits&stoppingBit != 0:
		return Stopping
	case bits&startedBit != 0:
		return Started
	default:
		return NotStarted
	}
}

// Started reports whether MarkStarted has succeeded.
func (s *State) Started() bool {
	return s.bits.Load()&startedBit != 0
}

// Stopping reports whether MarkStopping has succeeded.
func (s *State) Stopping() bool {
	return s.bits.Load()&stoppingBit != 0
}

// Ready reports whether the process should receive traffic.
func (s *State) Ready() bool {
	return s.bits.Load()&(startedBit|stoppingBit|readyBit) == startedBit|readyBit
}

// WaitStarted blocks until MarkStarted succeeds or ctx is done.
func (s *State) WaitStarted(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.startedChan():
		return nil
	}
}
