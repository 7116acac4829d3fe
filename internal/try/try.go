// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package try

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"
)

// PanicError is a recovered panic value along with the stack
// of the goroutine at the time it was recovered.
type PanicError struct {
	Value any
	Stack []byte
}

func (e PanicError) Error() string {
	return fmt.Sprintf("recovered from panic: %v", e.Value)
}

// Unwrap returns the panic value if it was an error.
func (e PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Recover must be deferred directly. Any recovered panic is stored
// in err, joined with whatever err already held.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	join(err, PanicError{
		Value: r,
		Stack: debug.Stack(),
	})
}

// CloseError wraps the error returned by an io.Closer.
type CloseError struct {
	Cause error
}

func (e CloseError) Error() string {
	return fmt.Sprintf("failed to close: %s", e.Cause)
}

func (e CloseError) Unwrap() error {
	return e.Cause
}

// Close closes v if it is an io.Closer and joins any failure into err.
func Close(err *error, v any) {
	c, ok := v.(io.Closer)
	if !ok || c == nil {
		return
	}

	cerr := c.Close()
	if cerr == nil {
		return
	}
	join(err, CloseError{Cause: cerr})
}

func join(err *error, other error) {
	if *err == nil {
		*err = other
		return
	}
	*err = errors.Join(*err, other)
}
