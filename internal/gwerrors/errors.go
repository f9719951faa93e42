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

// Package gwerrors is the closed error taxonomy the gateway surfaces to
// HTTP clients, per the gateway's error handling design.
package gwerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of gateway-visible failure.
type Kind int

const (
	// KindUnknownChain means the request addressed a chain id with no
	// configured upstreams.
	KindUnknownChain Kind = iota
	// KindMalformedRequest means the request body was not valid JSON-RPC.
	KindMalformedRequest
	// KindNoHealthyUpstream means the pool's healthy view was empty.
	KindNoHealthyUpstream
	// KindAllAttemptsFailed means no attempt produced a response to
	// forward: retries ran out on transient or rate-limited failures, or an
	// attempt failed permanently without a JSON-RPC envelope.
	KindAllAttemptsFailed
	// KindTimeout means the request-level deadline elapsed.
	KindTimeout
)

// Error is a gateway-classified failure with an HTTP status mapping.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status code this error maps to, per spec.
func (e *Error) Status() int {
	switch e.Kind {
	case KindUnknownChain:
		return http.StatusNotFound
	case KindMalformedRequest:
		return http.StatusBadRequest
	case KindNoHealthyUpstream:
		return http.StatusServiceUnavailable
	case KindAllAttemptsFailed:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindUnknownChain:
		return "unknown_chain"
	case KindMalformedRequest:
		return "malformed_request"
	case KindNoHealthyUpstream:
		return "no_healthy_upstream"
	case KindAllAttemptsFailed:
		return "all_attempts_failed"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// New wraps cause as a gateway error of the given kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// As is a small convenience over errors.As for this package's concrete type.
func As(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
