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
	"sync/atomic"
	"time"
)

// Pool is the fixed, configured-at-startup set of upstreams for one chain.
// The set of members never changes after construction; only each member's
// health state does. Select reads go through an atomically-swapped
// healthy-view snapshot so request-path readers never take a lock, the
// same copy-on-write shape the legacy staticUpstream used for its host
// list.
type Pool struct {
	all  []*Upstream
	view atomic.Pointer[HealthyView]
}

// Spec is one configured upstream entry.
type Spec struct {
	URL     string
	Timeout time.Duration
	Weight  int
}

// NewPool builds a Pool from specs, in configured order. Every member
// starts Unknown and is excluded from the healthy view until the first
// health probe pass classifies it.
func NewPool(specs []Spec) *Pool {
	p := &Pool{all: make([]*Upstream, len(specs))}
	for i, s := range specs {
		p.all[i] = newUpstream(i, s.URL, s.Timeout, s.Weight)
	}
	empty := HealthyView{}
	p.view.Store(&empty)
	return p
}

// All returns every configured upstream, healthy or not, in configured
// order. Used by the health checker; the request path never calls this.
func (p *Pool) All() []*Upstream {
	return p.all
}

// Healthy returns the current healthy-view snapshot. The returned slice
// must be treated as immutable; callers never see a partially rebuilt
// view because rebuildView swaps a whole new slice in atomically.
func (p *Pool) Healthy() HealthyView {
	return *p.view.Load()
}

// Mark transitions u to state and republishes the healthy view. The
// health checker does not use it (it sets every probed state first and
// rebuilds the view once per round); Mark is for callers that react to an
// observed call failure between probe rounds, and for tests.
func (p *Pool) Mark(u *Upstream, state HealthState) {
	u.setState(state)
	p.rebuildView()
}

// rebuildView recomputes the healthy view from each upstream's current
// state and atomically swaps it in, preserving configured order.
func (p *Pool) rebuildView() {
	next := make(HealthyView, 0, len(p.all))
	for _, u := range p.all {
		if u.State() == Healthy {
			next = append(next, u)
		}
	}
	p.view.Store(&next)
}
