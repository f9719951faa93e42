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

// Package gwconfig loads and validates the gateway's single YAML
// configuration document; each top-level section carries its own Validate
// method, called once after the whole document has been unmarshaled.
package gwconfig

import (
	"fmt"

	"github.com/evmgateway/rpcgateway/internal/gwlog"
)

// Config is the whole document. Every section name matches the gateway's
// documented configuration surface.
type Config struct {
	Server               ServerConfig            `yaml:"server"`
	Logging              gwlog.Config            `yaml:"logging"`
	LoadBalancing        LoadBalancingConfig     `yaml:"load_balancing"`
	ErrorHandling        ErrorHandlingConfig     `yaml:"error_handling"`
	Cache                CacheConfig             `yaml:"cache"`
	RequestCoalescing    RequestCoalescingConfig `yaml:"request_coalescing"`
	UpstreamHealthChecks HealthCheckConfig       `yaml:"upstream_health_checks"`
	Metrics              MetricsConfig           `yaml:"metrics"`
	Chains               map[int64]ChainConfig   `yaml:"chains"`
}

// ServerConfig is the inbound HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoadBalancingConfig picks the selector strategy.
type LoadBalancingConfig struct {
	Strategy string `yaml:"strategy"`
}

// ErrorHandlingConfig configures the retry policy.
type ErrorHandlingConfig struct {
	Type       string   `yaml:"type"`
	MaxRetries int      `yaml:"max_retries"`
	RetryDelay Duration `yaml:"retry_delay"`
	Jitter     bool     `yaml:"jitter"`
}

// MethodOverride is one cacheability override layered on the built-in table.
type MethodOverride struct {
	Method    string   `yaml:"method"`
	Cacheable bool     `yaml:"cacheable"`
	TTL       Duration `yaml:"ttl"`
}

// CacheConfig selects and sizes the cache backend.
type CacheConfig struct {
	Type                string           `yaml:"type"` // disabled | local | redis
	Capacity            int64            `yaml:"capacity"`
	URL                 string           `yaml:"url"`
	TTLOverrides        []MethodOverride `yaml:"ttl_overrides"`
	DeriveBlockByNumber bool             `yaml:"derive_block_by_number"`
}

// RequestCoalescingConfig configures single-flight collapsing.
type RequestCoalescingConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Timeout      Duration `yaml:"timeout"`
	MethodFilter []string `yaml:"method_filter"`
}

// HealthCheckConfig configures the background health prober.
type HealthCheckConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Interval        Duration `yaml:"interval"`
	Timeout         Duration `yaml:"timeout"`
	StrictReadiness bool     `yaml:"strict_readiness"`
	MaxConcurrent   int      `yaml:"max_concurrent_probes"`
}

// MetricsConfig is the separate metrics listener.
type MetricsConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// UpstreamConfig is one upstream RPC node entry.
type UpstreamConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
	Weight  int      `yaml:"weight"`
}

// ChainConfig is one chain's upstream pool.
type ChainConfig struct {
	Upstreams []UpstreamConfig `yaml:"upstreams"`
}

var validStrategies = map[string]bool{
	"":             true, // defaults to primary_only
	"primary_only": true,
	"round_robin":  true,
	"weighted":     true,
}

var validCacheTypes = map[string]bool{
	"":         true, // defaults to disabled
	"disabled": true,
	"local":    true,
	"redis":    true,
}

// Validate enforces the gateway's configuration invariants: chain ids are
// positive, every chain has at least one upstream, the selector strategy is
// one of the three named values, and max_retries is non-negative.
func (c *Config) Validate() error {
	if !validStrategies[c.LoadBalancing.Strategy] {
		return fmt.Errorf("load_balancing.strategy: unknown strategy %q", c.LoadBalancing.Strategy)
	}
	if !validCacheTypes[c.Cache.Type] {
		return fmt.Errorf("cache.type: unknown type %q", c.Cache.Type)
	}
	if c.Cache.Type == "redis" && c.Cache.URL == "" {
		return fmt.Errorf("cache.url: required when cache.type is %q", "redis")
	}
	if c.ErrorHandling.MaxRetries < 0 {
		return fmt.Errorf("error_handling.max_retries: must be >= 0, got %d", c.ErrorHandling.MaxRetries)
	}
	if len(c.Chains) == 0 {
		return fmt.Errorf("chains: at least one chain must be configured")
	}
	for id, chain := range c.Chains {
		if id <= 0 {
			return fmt.Errorf("chains: chain id %d must be a positive integer", id)
		}
		if len(chain.Upstreams) == 0 {
			return fmt.Errorf("chains[%d]: at least one upstream is required", id)
		}
		for i, u := range chain.Upstreams {
			if u.URL == "" {
				return fmt.Errorf("chains[%d].upstreams[%d]: url is required", id, i)
			}
		}
	}
	return nil
}
