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

	"github.com/evmgateway/rpcgateway/internal/fingerprint"
)

// Disabled is a Cache that always misses and discards every put. It's the
// default when cache.type is "disabled" or unset.
type Disabled struct{}

// Get always misses.
func (Disabled) Get(context.Context, fingerprint.Key) (Entry, bool) { return Entry{}, false }

// Put is a no-op.
func (Disabled) Put(context.Context, fingerprint.Key, Entry) {}

// Close is a no-op.
func (Disabled) Close() error { return nil }
