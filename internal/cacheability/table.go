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

// Package cacheability decides whether a JSON-RPC method's response is
// safe to cache, as a pure function of (method name, params): most methods
// decide by name alone, but a handful of block-tag-taking methods are only
// cacheable when that tag pins an explicit, immutable block.
package cacheability

import (
	"encoding/json"
	"time"
)

// defaultTTL is used for a cacheable method that has no explicit override.
const defaultTTL = 30 * time.Second

// builtin lists the methods the gateway considers cacheable out of the box
// regardless of params: pure lookups of historical, immutable state.
var builtin = map[string]bool{
	"eth_chainId":                            true,
	"net_version":                            true,
	"eth_getBlockByHash":                     true,
	"eth_getTransactionByHash":               true,
	"eth_getTransactionReceipt":              true,
	"eth_getTransactionByBlockHashAndIndex":  true,
	"eth_getUncleByBlockHashAndIndex":        true,
	"eth_getBlockTransactionCountByHash":     true,
}

// explicitlyNonCacheable is the explicit default for methods that are
// never cacheable no matter their params: tip reads with no block-tag
// parameter to pin, subscriptions, submissions, mempool, and gas price.
// Anything absent from both maps also falls through to false by the zero
// value of the lookup, but these are listed for readers.
var explicitlyNonCacheable = map[string]bool{
	"eth_blockNumber":          false,
	"eth_gasPrice":             false,
	"eth_maxPriorityFeePerGas": false,
	"eth_feeHistory":           false,
	"eth_sendRawTransaction":   false,
	"eth_sendTransaction":     false,
	"eth_newFilter":            false,
	"eth_newBlockFilter":       false,
	"eth_getFilterChanges":     false,
	"eth_subscribe":            false,
	"eth_unsubscribe":          false,
	"txpool_content":           false,
	"txpool_status":            false,
}

// blockTagParamIndex names methods whose cacheability depends on the
// block-tag argument at this zero-based position in params: cacheable
// only when that tag pins an explicit, immutable block (a hex block
// number, "earliest", "safe", or "finalized") rather than a mutable tip
// ("latest", "pending").
var blockTagParamIndex = map[string]int{
	"eth_getBlockByNumber":    0,
	"eth_getBalance":          1,
	"eth_getCode":             1,
	"eth_getStorageAt":        2,
	"eth_getTransactionCount": 1,
	"eth_call":                1,
}

var mutableBlockTags = map[string]bool{
	"latest":  true,
	"pending": true,
}

// Override is a configuration-supplied entry layered on top of the
// built-in table. An override always wins outright, even for a
// block-tag-sensitive method: the method's cacheability is the override's
// Cacheable value regardless of the tag in its params.
type Override struct {
	Method    string
	Cacheable bool
	TTL       time.Duration
}

// Table is a pure function of (method name, params) to (cacheable, ttl),
// seeded from the built-in table and extended by configuration overrides.
type Table struct {
	cacheable  map[string]bool
	ttl        map[string]time.Duration
	overridden map[string]bool
}

// New builds a Table from the built-in defaults plus overrides, which take
// precedence over the built-in entries by method name.
func New(overrides []Override) *Table {
	t := &Table{
		cacheable:  make(map[string]bool, len(builtin)+len(overrides)),
		ttl:        make(map[string]time.Duration, len(overrides)),
		overridden: make(map[string]bool, len(overrides)),
	}
	for method, ok := range builtin {
		t.cacheable[method] = ok
	}
	for method, ok := range explicitlyNonCacheable {
		t.cacheable[method] = ok
	}
	for _, o := range overrides {
		t.cacheable[o.Method] = o.Cacheable
		t.overridden[o.Method] = true
		if o.TTL > 0 {
			t.ttl[o.Method] = o.TTL
		}
	}
	return t
}

// Cacheable reports whether method's response may be cached for this
// particular call. For methods in blockTagParamIndex, an unoverridden
// result depends on whether params pins an explicit block rather than a
// mutable tip; every other method decides by name alone.
func (t *Table) Cacheable(method string, params json.RawMessage) bool {
	if !t.overridden[method] {
		if idx, ok := blockTagParamIndex[method]; ok {
			return pinsExplicitBlock(params, idx)
		}
	}
	return t.cacheable[method]
}

// pinsExplicitBlock reports whether the block-tag argument at idx names an
// explicit, immutable block. Anything that can't be read as a plain string
// (missing argument, or an EIP-1898 block-reference object) is treated as
// non-cacheable: ambiguity defaults to the safe answer.
func pinsExplicitBlock(params json.RawMessage, idx int) bool {
	var args []json.RawMessage
	if err := json.Unmarshal(params, &args); err != nil || idx >= len(args) {
		return false
	}
	var tag string
	if err := json.Unmarshal(args[idx], &tag); err != nil {
		return false
	}
	return !mutableBlockTags[tag]
}

// TTL returns the cache TTL to use for method, falling back to defaultTTL
// when no override set one.
func (t *Table) TTL(method string) time.Duration {
	if ttl, ok := t.ttl[method]; ok {
		return ttl
	}
	return defaultTTL
}
