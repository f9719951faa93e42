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

// Package jsonrpc models the JSON-RPC 2.0 envelopes the gateway forwards
// to upstreams and returns to clients. It does not interpret method
// semantics beyond what's needed for cache-key fingerprinting and outcome
// classification.
package jsonrpc

import "encoding/json"

// Request is an inbound or outbound JSON-RPC 2.0 request object. Batches
// are out of scope; a request is always a single object.
type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// IsError reports whether the response carries a JSON-RPC error (as opposed
// to a transport-level failure).
func (r *Response) IsError() bool { return r != nil && r.Error != nil }

// ParseRequest decodes raw bytes into a Request. It does not validate the
// method against any known set; malformed JSON is the only error case.
func ParseRequest(body []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ParseResponse decodes raw bytes into a Response.
func ParseResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WithID returns a shallow copy of resp with ID replaced, used to echo the
// client's original id onto a response that may have been served from
// cache or from an upstream call made with a different outbound id.
func (r Response) WithID(id json.RawMessage) Response {
	r.ID = id
	return r
}

// Marshal renders resp as wire bytes, defaulting jsonrpc to "2.0".
func (r Response) Marshal() ([]byte, error) {
	if r.Jsonrpc == "" {
		r.Jsonrpc = "2.0"
	}
	return json.Marshal(r)
}
