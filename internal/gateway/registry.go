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

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/evmgateway/rpcgateway/internal/cacheability"
	"github.com/evmgateway/rpcgateway/internal/coalesce"
	"github.com/evmgateway/rpcgateway/internal/gwcache"
	"github.com/evmgateway/rpcgateway/internal/gwconfig"
	"github.com/evmgateway/rpcgateway/internal/metrics"
	"github.com/evmgateway/rpcgateway/internal/retry"
	"github.com/evmgateway/rpcgateway/internal/upstream"
)

// Registry owns every configured chain's Handler, Pool, and Checker. It
// satisfies httpapi.ChainRegistry structurally (Handler, Ready), so this
// package has no import-time dependency on httpapi.
type Registry struct {
	handlers map[int64]*Handler
	checkers []*upstream.Checker
	strict   bool
}

// Build wires one Handler per configured chain from cfg, sharing one Cache
// and one metrics.Registry across every chain rather than provisioning a
// separate instance of either per chain.
func Build(cfg *gwconfig.Config, reg *metrics.Registry, log *zap.Logger) (*Registry, error) {
	cache, err := buildCache(cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}

	cacheOverrides := make([]cacheability.Override, len(cfg.Cache.TTLOverrides))
	for i, o := range cfg.Cache.TTLOverrides {
		cacheOverrides[i] = cacheability.Override{Method: o.Method, Cacheable: o.Cacheable, TTL: o.TTL.Dur()}
	}
	cacheTable := cacheability.New(cacheOverrides)

	retryPolicy := retry.Policy{
		MaxRetries: cfg.ErrorHandling.MaxRetries,
		RetryDelay: cfg.ErrorHandling.RetryDelay.Dur(),
		Jitter:     cfg.ErrorHandling.Jitter,
	}
	coalesceTimeout := cfg.RequestCoalescing.Timeout.Dur()
	var coalesceMethods map[string]bool
	if len(cfg.RequestCoalescing.MethodFilter) > 0 {
		coalesceMethods = make(map[string]bool, len(cfg.RequestCoalescing.MethodFilter))
		for _, m := range cfg.RequestCoalescing.MethodFilter {
			coalesceMethods[m] = true
		}
	}

	client := upstream.NewClient(&http.Client{})

	r := &Registry{handlers: make(map[int64]*Handler, len(cfg.Chains)), strict: cfg.UpstreamHealthChecks.StrictReadiness}

	for chainID, chainCfg := range cfg.Chains {
		specs := make([]upstream.Spec, len(chainCfg.Upstreams))
		for i, u := range chainCfg.Upstreams {
			specs[i] = upstream.Spec{URL: u.URL, Timeout: u.Timeout.Dur(), Weight: u.Weight}
		}
		pool := upstream.NewPool(specs)

		sel, err := upstream.NewSelector(cfg.LoadBalancing.Strategy)
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", chainID, err)
		}

		chainLog := log.Named("chain").With(zap.Int64("chain_id", chainID))

		if cfg.UpstreamHealthChecks.Enabled {
			interval := cfg.UpstreamHealthChecks.Interval.Dur()
			if interval <= 0 {
				interval = 5 * time.Minute
			}
			probeTimeout := cfg.UpstreamHealthChecks.Timeout.Dur()
			if probeTimeout <= 0 {
				probeTimeout = interval / 2
			}
			checker := upstream.NewChecker(pool, client, chainID, interval, probeTimeout, cfg.UpstreamHealthChecks.MaxConcurrent, reg, chainLog)
			r.checkers = append(r.checkers, checker)
		}

		r.handlers[chainID] = &Handler{
			ChainID:         chainID,
			Pool:            pool,
			Selector:        sel,
			Client:          client,
			Cache:           cache,
			Cacheable:       cacheTable,
			Coalescer:       coalesce.NewGroup(coalesceTimeout, chainLog),
			RetryPolicy:     retryPolicy,
			CoalesceEnabled: cfg.RequestCoalescing.Enabled,
			CoalesceMethods: coalesceMethods,
			Log:             chainLog,
			Metrics:         reg,
		}
	}

	return r, nil
}

func buildCache(cfg gwconfig.CacheConfig, log *zap.Logger) (gwcache.Cache, error) {
	switch cfg.Type {
	case "local":
		return gwcache.NewLocal(cfg.Capacity, log)
	case "redis":
		return gwcache.NewRemote(cfg.URL, log)
	default:
		return &gwcache.Disabled{}, nil
	}
}

// StartHealthChecks launches every chain's background health checker. It
// blocks until each checker's first synchronous probe round completes.
func (r *Registry) StartHealthChecks(ctx context.Context) {
	for _, c := range r.checkers {
		c.Start(ctx)
	}
}

// StopHealthChecks halts every chain's background health checker.
func (r *Registry) StopHealthChecks() {
	for _, c := range r.checkers {
		c.Stop()
	}
}

// Handler implements httpapi.ChainRegistry.
func (r *Registry) Handler(chainID int64) (*Handler, bool) {
	h, ok := r.handlers[chainID]
	return h, ok
}

// Ready implements httpapi.ChainRegistry: every configured chain must have
// at least one Healthy upstream, or in strict mode every upstream must be
// Healthy or Terminated.
func (r *Registry) Ready() bool {
	for _, h := range r.handlers {
		if !chainReady(h.Pool, r.strict) {
			return false
		}
	}
	return true
}

func chainReady(pool *upstream.Pool, strict bool) bool {
	if !strict {
		return len(pool.Healthy()) > 0
	}
	for _, u := range pool.All() {
		if u.State() != upstream.Healthy && u.State() != upstream.Terminated {
			return false
		}
	}
	return true
}
