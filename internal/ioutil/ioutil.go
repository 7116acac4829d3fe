// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package ioutil reads bounded amounts of response bodies.
package ioutil

import (
	"io"

	"github.com/z5labs/keel/internal/try"
)

// ReadAllAndTryClose reads at most limit bytes from r and then closes r
// if it is an io.Closer. A close failure is returned as a try.CloseError.
func ReadAllAndTryClose(r io.Reader, limit int64) (_ []byte, err error) {
	defer try.Close(&err, r)
	return io.ReadAll(io.LimitReader(r, limit))
}

// DrainAndTryClose discards at most limit bytes from r and then closes r
// if it is an io.Closer. Draining lets an HTTP connection be reused.
func DrainAndTryClose(r io.Reader, limit int64) (err error) {
	defer try.Close(&err, r)
	_, err = io.Copy(io.Discard, io.LimitReader(r, limit))
	return err
}
