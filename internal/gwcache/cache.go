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

// Package gwcache provides the pluggable, advisory cache abstraction: a
// miss at any time is always legal, and a hit within TTL must equal the
// last successful put.
package gwcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/evmgateway/rpcgateway/internal/fingerprint"
)

// Entry is the cached value: the raw JSON-RPC result plus the metadata
// needed to decide freshness. Only successful (no "error") responses are
// ever stored.
type Entry struct {
	Result    json.RawMessage `json:"result"`
	InsertedAt time.Time      `json:"inserted_at"`
	TTL       time.Duration   `json:"ttl"`
}

// Expired reports whether e is older than its TTL as of now.
func (e Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.InsertedAt) > e.TTL
}

// Cache is the read-through abstraction the chain handler consumes. All
// methods must be safe for concurrent use and must never return an error
// to the caller: a cache is advisory, so any internal failure degrades to
// a miss (Get) or a silent drop (Put).
type Cache interface {
	// Get returns the cached entry for key, or ok=false on any miss
	// (absent, expired, or an internal transport failure).
	Get(ctx context.Context, key fingerprint.Key) (entry Entry, ok bool)
	// Put stores value under key with value.TTL. Failures are logged
	// by the implementation and never surfaced to the caller.
	Put(ctx context.Context, key fingerprint.Key, value Entry)
	// Close releases any resources held by the cache.
	Close() error
}
