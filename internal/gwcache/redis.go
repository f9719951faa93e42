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
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/evmgateway/rpcgateway/internal/fingerprint"
)

// defaultRemoteTimeout bounds every individual Redis round trip so a slow
// or unreachable remote cache never blocks the request pipeline for long;
// the caller's context, if shorter, still wins.
const defaultRemoteTimeout = 250 * time.Millisecond

// Remote wraps a Redis client as the remote key-value cache variant. Any
// transport error is treated as a miss (Get) or silently dropped (Put) —
// the pipeline must never see a cache-layer error.
type Remote struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRemote connects to the Redis instance at addr (a redis:// URL).
func NewRemote(addr string, log *zap.Logger) (*Remote, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, err
	}
	return &Remote{client: redis.NewClient(opts), log: log}, nil
}

// Get implements Cache.
func (r *Remote) Get(ctx context.Context, key fingerprint.Key) (Entry, bool) {
	ctx, cancel := context.WithTimeout(ctx, defaultRemoteTimeout)
	defer cancel()

	raw, err := r.client.Get(ctx, string(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("remote cache get failed", zap.Error(err))
		}
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		r.log.Warn("remote cache entry unreadable", zap.Error(err))
		return Entry{}, false
	}
	if entry.Expired(time.Now()) {
		return Entry{}, false
	}
	return entry, true
}

// Put implements Cache.
func (r *Remote) Put(ctx context.Context, key fingerprint.Key, value Entry) {
	ctx, cancel := context.WithTimeout(ctx, defaultRemoteTimeout)
	defer cancel()

	raw, err := json.Marshal(value)
	if err != nil {
		r.log.Warn("remote cache put marshal failed", zap.Error(err))
		return
	}

	ttl := value.TTL
	if ttl <= 0 {
		ttl = 0 // redis treats a zero expiration as "no expiry"
	}
	if err := r.client.Set(ctx, string(key), raw, ttl).Err(); err != nil {
		r.log.Warn("remote cache put failed", zap.Error(err))
	}
}

// Close implements Cache.
func (r *Remote) Close() error {
	return r.client.Close()
}
