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

// Package upstream holds the per-chain pool of backend RPC nodes, their
// health state machine, and the load-balancing selector over the healthy
// subset.
package upstream

import (
	"sync/atomic"
	"time"
)

// HealthState is the upstream health state machine. Only Healthy is
// eligible for selection; Terminated is permanent and is never re-probed.
type HealthState int32

const (
	// Unknown is the initial state before any probe has completed.
	Unknown HealthState = iota
	// Healthy means the last probe succeeded and the chain id matched.
	Healthy
	// Unhealthy means the last probe failed or timed out.
	Unhealthy
	// Terminated means a probe once returned a mismatched chain id; this
	// upstream is permanently excluded and never probed again.
	Terminated
)

func (s HealthState) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Upstream is one configured backend RPC node. Identity is its URL plus
// its position in the chain's configured list; both are fixed at startup.
type Upstream struct {
	// Index is this upstream's position in the chain's configured list,
	// used to preserve configured order in the healthy view.
	Index   int
	URL     string
	Timeout time.Duration
	Weight  int

	state atomic.Int32
}

// newUpstream constructs an Upstream in the Unknown state.
func newUpstream(index int, url string, timeout time.Duration, weight int) *Upstream {
	if weight < 1 {
		weight = 1
	}
	u := &Upstream{Index: index, URL: url, Timeout: timeout, Weight: weight}
	u.state.Store(int32(Unknown))
	return u
}

// State returns the upstream's current health state.
func (u *Upstream) State() HealthState {
	return HealthState(u.state.Load())
}

// setState transitions the upstream's health state. Terminated is a one-way
// door: once set, further calls are no-ops.
func (u *Upstream) setState(s HealthState) {
	for {
		cur := HealthState(u.state.Load())
		if cur == Terminated {
			return
		}
		if u.state.CompareAndSwap(int32(cur), int32(s)) {
			return
		}
	}
}

// HealthyView is the immutable, cloneable subset of upstreams currently
// eligible for selection, preserving configured order and weights.
type HealthyView []*Upstream
