// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
)

// Classify decides whether the outcome of a single attempt warrants a
// retry and describes why. Transport failures and per-attempt timeouts
// are retryable, as are responses with status 408, 429 or 5xx. Everything
// else, including an open circuit, is terminal.
func Classify(resp *http.Response, err error) (retry bool, reason string) {
	if err != nil {
		return classifyError(err)
	}
	if resp == nil {
		return false, "no response"
	}

	reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
	switch code := resp.StatusCode; {
	case code >= 500, code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true, reason
	default:
		return false, reason
	}
}

func classifyError(err error) (bool, string) {
	var terr TimeoutError
	if errors.As(err, &terr) {
		return true, "timeout"
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false, "circuit open"
	}
	if errors.Is(err, context.Canceled) {
		return false, "canceled"
	}
	return recoverable(err), errorKind(err)
}

// recoverable defers to retryablehttp for transport errors which will
// never succeed on retry, such as an unsupported scheme, too many
// redirects, invalid headers or an untrusted certificate.
func recoverable(err error) bool {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		uerr = &url.Error{Op: "Do", Err: err}
	}
	retry, _ := retryablehttp.DefaultRetryPolicy(context.Background(), nil, uerr)
	return retry
}

func errorKind(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		err = uerr.Err
	}
	return fmt.Sprintf("%T", err)
}
