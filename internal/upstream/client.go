// Copyright 2015 Matthew Holt and The Caddy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/evmgateway/rpcgateway/internal/jsonrpc"
)

// Client sends one JSON-RPC request to one upstream and classifies the
// outcome. It owns no retry or selection logic; that is the retry and
// selector packages' job.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a Client sharing one *http.Client across all upstreams
// so keep-alive connections are pooled, the way a single reverse proxy
// transport is shared across backends.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{httpClient: hc}
}

// Call sends body (a single already-validated JSON-RPC request) to u and
// returns the classified outcome. Every failure, including an upstream
// HTTP/JSON-RPC error response and a failure to build the HTTP request, is
// carried in the Outcome; a request-construction failure is classified as
// a transport error.
func (c *Client) Call(ctx context.Context, u *Upstream, body []byte) jsonrpc.Outcome {
	timeout := u.Timeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, bytes.NewReader(body))
	if err != nil {
		return jsonrpc.ClassifyTransportError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return jsonrpc.ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if outcome := jsonrpc.ClassifyHTTPStatus(resp.StatusCode); outcome != nil {
		io.Copy(io.Discard, resp.Body)
		return *outcome
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return jsonrpc.ClassifyTransportError(err)
	}

	parsed, err := jsonrpc.ParseResponse(raw)
	if err != nil {
		return jsonrpc.ClassifyTransportError(fmt.Errorf("decode upstream response: %w", err))
	}

	return jsonrpc.ClassifyRPCError(parsed)
}
