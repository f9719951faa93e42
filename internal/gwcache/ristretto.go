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

package gwcache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/evmgateway/rpcgateway/internal/fingerprint"
)

// Local wraps a ristretto.Cache as the in-memory LRU-like cache variant.
// Capacity is expressed in entry count: each entry costs 1 against
// MaxCost, so MaxCost == capacity.
type Local struct {
	cache *ristretto.Cache
	log   *zap.Logger
}

// NewLocal builds a Local cache bounded by capacity entries.
func NewLocal(capacity int64, log *zap.Logger) (*Local, error) {
	if capacity <= 0 {
		capacity = 1000
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: capacity * 10,
		MaxCost:     capacity,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Local{cache: c, log: log}, nil
}

// Get implements Cache.
func (l *Local) Get(_ context.Context, key fingerprint.Key) (Entry, bool) {
	v, found := l.cache.Get(string(key))
	if !found {
		return Entry{}, false
	}
	entry, ok := v.(Entry)
	if !ok {
		return Entry{}, false
	}
	if entry.Expired(time.Now()) {
		l.cache.Del(string(key))
		return Entry{}, false
	}
	return entry, true
}

// Put implements Cache. It waits for ristretto's buffered write to be
// applied, so a Get that follows a completed Put sees the entry. Ristretto
// admission is probabilistic: a Put may be dropped under contention, which
// is within the cache's advisory contract.
func (l *Local) Put(_ context.Context, key fingerprint.Key, value Entry) {
	ttl := value.TTL
	if ttl <= 0 {
		l.cache.Set(string(key), value, 1)
		l.cache.Wait()
		return
	}
	if !l.cache.SetWithTTL(string(key), value, 1, ttl) {
		l.log.Debug("local cache put dropped", zap.String("key", string(key)))
		return
	}
	l.cache.Wait()
}

// Close implements Cache.
func (l *Local) Close() error {
	l.cache.Close()
	return nil
}
