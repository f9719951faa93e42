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

// Package fingerprint computes the deterministic cache key for a JSON-RPC
// request: a function of (chain id, method, normalized params) that
// excludes jsonrpc and id so two requests differing only in id collide.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Key is the opaque, bit-identical-for-equal-inputs cache key.
type Key string

// Compute returns the cache key for a (chainID, method, params) triple.
// params is taken in its serialized canonical form: a decode/re-encode
// round trip normalizes whitespace and sorts the keys of nested objects,
// keeps array element order, and rejects params that aren't valid JSON up
// front.
func Compute(chainID int64, method string, params json.RawMessage) (Key, error) {
	canonical, err := canonicalize(params)
	if err != nil {
		return "", err
	}

	h := xxhash.New()
	var chainBuf [8]byte
	binary.BigEndian.PutUint64(chainBuf[:], uint64(chainID))
	_, _ = h.Write(chainBuf[:])
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(method))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(canonical)

	sum := h.Sum64()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], sum)
	return Key(hex.EncodeToString(buf[:])), nil
}

// canonicalize re-encodes params through a generic interface{} round trip
// so that insignificant whitespace and key insertion order inside nested
// objects don't change the fingerprint, while preserving array element
// order (params is a JSON-RPC positional parameter array).
func canonicalize(params json.RawMessage) ([]byte, error) {
	if len(params) == 0 {
		return []byte("null"), nil
	}
	var v any
	if err := json.Unmarshal(params, &v); err != nil {
		return nil, err
	}
	return canonicalMarshal(v)
}

// canonicalMarshal marshals v with object keys sorted, matching the stable
// field ordering requirement for nested objects inside the params array.
func canonicalMarshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		return marshalSortedMap(val)
	case []any:
		return marshalSlice(val)
	default:
		return json.Marshal(val)
	}
}

func marshalSlice(vals []any) ([]byte, error) {
	out := []byte{'['}
	for i, elem := range vals {
		if i > 0 {
			out = append(out, ',')
		}
		b, err := canonicalMarshal(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return append(out, ']'), nil
}

func marshalSortedMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(out, kb...)
		out = append(out, ':')
		vb, err := canonicalMarshal(m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, vb...)
	}
	return append(out, '}'), nil
}
