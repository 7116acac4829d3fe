// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package service

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/z5labs/keel/internal/ioutil"
)

// maxUpstreamBody caps how much of the upstream response is relayed.
const maxUpstreamBody = 1 << 20

// UpstreamStatusError is returned when the demo upstream answers
// with a non-2xx status.
type UpstreamStatusError struct {
	StatusCode int
}

func (e UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.StatusCode)
}

type outboundResult struct {
	Result string `json:"result"`
}

// outboundDemo relays the body of a GET to upstream, made through the
// resilient client, as {"result": "<body>"}.
type outboundDemo struct {
	client   *http.Client
	upstream string
}

func (d outboundDemo) ServeHTTPE(w http.ResponseWriter, r *http.Request) error {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, d.upstream, nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = ioutil.DrainAndTryClose(resp.Body, maxUpstreamBody)
		return UpstreamStatusError{StatusCode: resp.StatusCode}
	}

	b, err := ioutil.ReadAllAndTryClose(resp.Body, maxUpstreamBody)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(outboundResult{Result: string(b)})
}
