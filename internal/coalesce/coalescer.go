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

// Package coalesce collapses concurrent identical requests into a single
// underlying call, fanning the one result out to every waiter. It is built
// directly on golang.org/x/sync/singleflight, whose Group already gives us
// the "install on first waiter, attach on subsequent waiters, remove
// atomically with broadcast" invariants; this package adds the coalesce
// timeout the stdlib primitive doesn't have.
package coalesce

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrTimeout is returned to a waiter that gave up before the in-flight
// factory finished. The factory itself is unaffected and keeps running for
// whoever is still waiting (or for no one, if it was the only caller).
var ErrTimeout = errors.New("coalesce: wait timed out")

// Group coalesces calls for one chain's key space. A gateway keeps one
// Group per chain, matching the per-pool scoping of everything else in the
// pipeline.
type Group struct {
	sf      singleflight.Group
	timeout time.Duration
	log     *zap.Logger

	waiters waiterGauge
}

// waiterGauge is the optional sink for waiter counts, kept as a narrow
// interface here so this package has no dependency on the metrics package.
type waiterGauge interface {
	Inc(chain int64)
	Dec(chain int64)
}

// NewGroup builds a Group with the given coalesce timeout. A zero timeout
// disables the timeout: waiters block until the factory completes.
func NewGroup(timeout time.Duration, log *zap.Logger) *Group {
	return &Group{timeout: timeout, log: log}
}

// SetWaiterGauge wires an optional metrics sink for waiter counts.
func (g *Group) SetWaiterGauge(w waiterGauge) { g.waiters = w }

// Run executes factory for key if no call is currently in flight for it,
// otherwise attaches the caller as a waiter on the in-flight call. Every
// waiter that joined before completion observes the same value or error.
// If the coalesce timeout elapses first, Run returns ErrTimeout; if ctx is
// cancelled first, it returns ctx.Err(). Either way only this caller is
// detached — the original factory call is untouched and continues for any
// other waiters.
func (g *Group) Run(ctx context.Context, chainID int64, key string, factory func() (any, error)) (any, error) {
	ch := g.sf.DoChan(key, factory)

	if g.waiters != nil {
		g.waiters.Inc(chainID)
		defer g.waiters.Dec(chainID)
	}

	var timeoutC <-chan time.Time
	if g.timeout > 0 {
		timer := time.NewTimer(g.timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-timeoutC:
		g.log.Warn("coalesce wait timed out", zap.String("key", key), zap.Duration("timeout", g.timeout))
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
