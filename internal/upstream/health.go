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
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/evmgateway/rpcgateway/internal/metrics"
)

// probeRequest is the fixed eth_chainId probe body every health check sends.
// chainId is cheap, side-effect free, and doubles as the chain-identity
// check: a mismatched answer means this upstream is wired to the wrong
// network entirely, not just momentarily unhealthy.
var probeRequest = []byte(`{"jsonrpc":"2.0","method":"eth_chainId","params":[],"id":"health"}`)

type probeResult struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Checker periodically probes every upstream in a Pool with eth_chainId,
// the same ticker-driven fan-out shape as a legacy HealthCheckWorker: one
// goroutine per upstream per tick, with an optional rate limiter bounding
// how quickly those goroutines are launched.
type Checker struct {
	pool         *Pool
	httpClient   *Client
	chainID      int64
	interval     time.Duration
	probeTimeout time.Duration
	log          *zap.Logger
	metrics      *metrics.Registry

	// limiter bounds how many probes launch in the same instant when a
	// pool is large; nil means unbounded (one goroutine per upstream).
	limiter *rate.Limiter

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewChecker builds a Checker bound to pool. chainID is the configured
// chain identity every upstream's probe response must match. probeTimeout
// <= 0 means each probe has no deadline of its own beyond the upstream's
// per-call Timeout. maxConcurrent <= 0 means probe every upstream in the
// pool at once.
func NewChecker(pool *Pool, httpClient *Client, chainID int64, interval, probeTimeout time.Duration, maxConcurrent int, reg *metrics.Registry, log *zap.Logger) *Checker {
	c := &Checker{
		pool:         pool,
		httpClient:   httpClient,
		chainID:      chainID,
		interval:     interval,
		probeTimeout: probeTimeout,
		log:          log,
		metrics:      reg,
		stop:         make(chan struct{}),
	}
	if maxConcurrent > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(maxConcurrent), maxConcurrent)
	}
	return c
}

// Start runs an immediate probe pass, then probes on the configured
// interval until Stop is called. It blocks until the first pass completes
// so a freshly started gateway doesn't serve traffic before any upstream
// has been classified.
func (c *Checker) Start(ctx context.Context) {
	c.probeAll(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.probeAll(ctx)
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the background probe loop and waits for it to exit.
func (c *Checker) Stop() {
	close(c.stop)
	c.wg.Wait()
}

func (c *Checker) probeAll(ctx context.Context) {
	all := c.pool.All()
	var wg sync.WaitGroup
	for _, u := range all {
		if u.State() == Terminated {
			continue
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				continue
			}
		}
		wg.Add(1)
		go func(u *Upstream) {
			defer wg.Done()
			c.probeOne(ctx, u)
		}(u)
	}
	wg.Wait()
	c.pool.rebuildView()
}

func (c *Checker) probeOne(ctx context.Context, u *Upstream) {
	if c.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.probeTimeout)
		defer cancel()
	}
	outcome := c.httpClient.Call(ctx, u, probeRequest)
	if outcome.Response == nil || outcome.Response.Error != nil {
		c.log.Debug("upstream health probe failed",
			zap.String("url", u.URL), zap.Int("chain_id", int(c.chainID)))
		c.transition(u, Unhealthy)
		return
	}

	gotChainID, err := parseChainID(outcome.Response.Result)
	if err != nil {
		c.log.Warn("upstream health probe returned unparseable chain id",
			zap.String("url", u.URL), zap.Error(err))
		c.transition(u, Unhealthy)
		return
	}
	if gotChainID != c.chainID {
		c.log.Error("upstream chain id mismatch, terminating upstream",
			zap.String("url", u.URL), zap.Int64("want", c.chainID), zap.Int64("got", gotChainID))
		c.transition(u, Terminated)
		return
	}
	c.transition(u, Healthy)
}

func (c *Checker) transition(u *Upstream, state HealthState) {
	u.setState(state)
	if c.metrics != nil {
		c.metrics.UpstreamHealthy.WithLabelValues(strconv.FormatInt(c.chainID, 10), u.URL).Set(float64(state))
	}
}

// parseChainID decodes the 0x-prefixed hex quantity eth_chainId returns.
func parseChainID(raw json.RawMessage) (int64, error) {
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, err
	}
	hex = string(bytes.TrimPrefix([]byte(hex), []byte("0x")))
	return strconv.ParseInt(hex, 16, 64)
}
