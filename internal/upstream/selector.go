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
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/evmgateway/rpcgateway/internal/gwerrors"
)

// Selector starts one attempt sequence per logical request. This mirrors
// the legacy selection policies (Random, LeastConn, RoundRobin) but adds
// the per-request attempt sequencing this gateway's retry loop needs.
type Selector interface {
	NewRequest() RequestSelector
}

// RequestSelector hands out one upstream per retry attempt of a single
// logical request. The round_robin and weighted strategies do not repeat
// the immediately preceding pick when more than one healthy upstream is
// available; primary_only always returns the first healthy upstream.
type RequestSelector interface {
	Next(view HealthyView) (*Upstream, error)
}

func errNoHealthy() error {
	return gwerrors.New(gwerrors.KindNoHealthyUpstream, nil)
}

// -- primary_only -----------------------------------------------------------

// PrimaryOnlySelector always selects the first upstream in the healthy
// view (the earliest-configured healthy one), regardless of attempt
// number, and fails only when the view is empty. Within one request it
// never advances to a different upstream on retry.
type PrimaryOnlySelector struct{}

func (PrimaryOnlySelector) NewRequest() RequestSelector { return primaryOnlyRequest{} }

type primaryOnlyRequest struct{}

func (primaryOnlyRequest) Next(view HealthyView) (*Upstream, error) {
	if len(view) == 0 {
		return nil, errNoHealthy()
	}
	return view[0], nil
}

// -- round_robin --------------------------------------------------------------

// RoundRobinSelector cycles through the healthy view in configured order.
// The shared counter advances exactly once per request (at NewRequest),
// so fairness is measured across requests, not across one request's
// retries; within a request, successive attempts walk forward from that
// request's base index so they don't repeat a failed upstream.
type RoundRobinSelector struct {
	counter atomic.Uint64
}

func (s *RoundRobinSelector) NewRequest() RequestSelector {
	base := s.counter.Add(1) - 1
	return &roundRobinRequest{base: base}
}

type roundRobinRequest struct {
	base    uint64
	attempt int
	prev    *Upstream
}

func (r *roundRobinRequest) Next(view HealthyView) (*Upstream, error) {
	if len(view) == 0 {
		return nil, errNoHealthy()
	}
	n := uint64(len(view))
	idx := (r.base + uint64(r.attempt)) % n
	candidate := view[idx]
	if r.attempt > 0 && n > 1 && candidate == r.prev {
		idx = (idx + 1) % n
		candidate = view[idx]
	}
	r.attempt++
	r.prev = candidate
	return candidate, nil
}

// -- weighted -----------------------------------------------------------------

// WeightedSelector picks randomly in proportion to each upstream's
// configured weight (default 1, i.e. plain uniform random when weights
// are unset).
type WeightedSelector struct{}

func (s *WeightedSelector) NewRequest() RequestSelector { return &weightedRequest{} }

type weightedRequest struct {
	prev *Upstream
}

func (r *weightedRequest) Next(view HealthyView) (*Upstream, error) {
	if len(view) == 0 {
		return nil, errNoHealthy()
	}
	if len(view) == 1 {
		r.prev = view[0]
		return view[0], nil
	}

	pick := weightedPick(view)
	if pick == r.prev {
		// One resample is enough to de-bias away from the immediately
		// preceding pick without turning this into an unbounded loop;
		// fall back to a deterministic linear scan if we collide again.
		pick = weightedPick(view)
		if pick == r.prev {
			for _, u := range view {
				if u != r.prev {
					pick = u
					break
				}
			}
		}
	}
	r.prev = pick
	return pick, nil
}

func weightedPick(view HealthyView) *Upstream {
	total := 0
	for _, u := range view {
		total += u.Weight
	}
	if total <= 0 {
		return view[rand.Intn(len(view))] //nolint:gosec // load balancing, not security sensitive
	}
	r := rand.Intn(total) //nolint:gosec // load balancing, not security sensitive
	for _, u := range view {
		r -= u.Weight
		if r < 0 {
			return u
		}
	}
	return view[len(view)-1]
}

// NewSelector builds the Selector named by strategy, one of "primary_only",
// "round_robin", or "weighted".
func NewSelector(strategy string) (Selector, error) {
	switch strategy {
	case "", "primary_only":
		return PrimaryOnlySelector{}, nil
	case "round_robin":
		return &RoundRobinSelector{}, nil
	case "weighted":
		return &WeightedSelector{}, nil
	default:
		return nil, fmt.Errorf("unknown selection strategy %q", strategy)
	}
}
