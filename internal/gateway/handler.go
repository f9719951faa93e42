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

// Package gateway implements the per-chain request pipeline: coalesce,
// cache, retry, select, call — the four-step flow each chain's handler
// runs for every inbound JSON-RPC request.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evmgateway/rpcgateway/internal/cacheability"
	"github.com/evmgateway/rpcgateway/internal/coalesce"
	"github.com/evmgateway/rpcgateway/internal/fingerprint"
	"github.com/evmgateway/rpcgateway/internal/gwcache"
	"github.com/evmgateway/rpcgateway/internal/gwerrors"
	"github.com/evmgateway/rpcgateway/internal/jsonrpc"
	"github.com/evmgateway/rpcgateway/internal/metrics"
	"github.com/evmgateway/rpcgateway/internal/retry"
	"github.com/evmgateway/rpcgateway/internal/upstream"
)

// Handler owns one chain's full pipeline: one Pool, one Selector, one
// Coalescer Group, one cacheability Table, sharing one Cache and one
// metrics Registry with every other chain's Handler.
type Handler struct {
	ChainID int64

	Pool        *upstream.Pool
	Selector    upstream.Selector
	Client      *upstream.Client
	Cache       gwcache.Cache
	Cacheable   *cacheability.Table
	Coalescer   *coalesce.Group
	RetryPolicy retry.Policy

	// CoalesceEnabled gates whether Handle ever coalesces through
	// Coalescer at all; false runs every request's factory directly.
	CoalesceEnabled bool
	// CoalesceMethods scopes coalescing to a subset of JSON-RPC methods.
	// An empty/nil set means every method is eligible.
	CoalesceMethods map[string]bool

	Log     *zap.Logger
	Metrics *metrics.Registry
}

// coalesces reports whether req.Method should go through h.Coalescer.
func (h *Handler) coalesces(method string) bool {
	if !h.CoalesceEnabled {
		return false
	}
	if len(h.CoalesceMethods) == 0 {
		return true
	}
	return h.CoalesceMethods[method]
}

// Handle runs the full pipeline for one inbound JSON-RPC request body and
// returns the response envelope to send back, or a classified gateway
// error if the request never gets one. A nil response with a nil error
// means the caller's context was cancelled and nothing should be written.
func (h *Handler) Handle(ctx context.Context, body []byte) (*jsonrpc.Response, *gwerrors.Error) {
	start := time.Now()
	req, err := jsonrpc.ParseRequest(body)
	if err != nil {
		return nil, gwerrors.New(gwerrors.KindMalformedRequest, err)
	}

	log := h.Log.With(zap.Int64("chain_id", h.ChainID), zap.String("method", req.Method))

	key, err := fingerprint.Compute(h.ChainID, req.Method, req.Params)
	if err != nil {
		return nil, gwerrors.New(gwerrors.KindMalformedRequest, err)
	}

	factory := h.factory(ctx, req, key, log)
	var result any
	if h.coalesces(req.Method) {
		result, err = h.Coalescer.Run(ctx, h.ChainID, string(key), factory)
	} else {
		result, err = factory()
	}
	h.observe(req.Method, start, err)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, nil
		}
		return nil, classify(err)
	}

	resp := result.(*jsonrpc.Response).WithID(req.ID)
	return &resp, nil
}

// factory is invoked at most once per coalesced key; it performs the
// cache read *inside* the coalesced section so a late waiter benefits
// from a cache write made by whichever caller won the race.
func (h *Handler) factory(ctx context.Context, req *jsonrpc.Request, key fingerprint.Key, log *zap.Logger) func() (any, error) {
	cacheable := h.Cacheable.Cacheable(req.Method, req.Params)

	return func() (any, error) {
		if cacheable {
			if entry, ok := h.Cache.Get(ctx, key); ok && !entry.Expired(time.Now()) {
				if h.Metrics != nil {
					h.Metrics.CacheHitsTotal.WithLabelValues(chainLabel(h.ChainID)).Inc()
				}
				return &jsonrpc.Response{Result: entry.Result}, nil
			}
			if h.Metrics != nil {
				h.Metrics.CacheMissesTotal.WithLabelValues(chainLabel(h.ChainID)).Inc()
			}
		}

		value, err := retry.Run(ctx, h.RetryPolicy, log, h.attempt(req))
		if err != nil {
			return nil, err
		}
		resp := value.(*jsonrpc.Response)

		if cacheable && !resp.IsError() {
			h.Cache.Put(ctx, key, gwcache.Entry{
				Result:     resp.Result,
				InsertedAt: time.Now(),
				TTL:        h.Cacheable.TTL(req.Method),
			})
		}
		return resp, nil
	}
}

// attempt builds the per-request retry.Attempt closure: select a fresh
// upstream each try, call it, and classify the outcome into the retry
// loop's vocabulary.
func (h *Handler) attempt(req *jsonrpc.Request) retry.Attempt {
	reqSelector := h.Selector.NewRequest()

	outbound := *req
	outbound.ID = json.RawMessage(`"` + uuid.NewString() + `"`)
	body, err := json.Marshal(outbound)
	if err != nil {
		return func(context.Context, int) (any, retry.Classification, error) {
			return nil, retry.Permanent, err
		}
	}

	return func(ctx context.Context, attemptNumber int) (any, retry.Classification, error) {
		view := h.Pool.Healthy()
		u, err := reqSelector.Next(view)
		if err != nil {
			return nil, retry.Permanent, err
		}

		outcome := h.Client.Call(ctx, u, body)
		if h.Metrics != nil {
			h.Metrics.UpstreamCallsTotal.WithLabelValues(chainLabel(h.ChainID), u.URL, outcomeLabel(outcome.Kind)).Inc()
		}

		switch outcome.Kind {
		case jsonrpc.Ok:
			return outcome.Response, retry.Success, nil
		case jsonrpc.PermanentFailure:
			if outcome.Response != nil {
				// The upstream answered with its own JSON-RPC error; that's
				// not a gateway failure, so it terminates the retry loop as
				// a success and is forwarded to the client verbatim.
				return outcome.Response, retry.Success, nil
			}
			return nil, retry.Permanent, outcome.Cause
		default: // TransientFailure, RateLimited
			return nil, retry.Transient, outcome.Cause
		}
	}
}

func (h *Handler) observe(method string, start time.Time, err error) {
	if h.Metrics == nil {
		return
	}
	h.Metrics.RequestDuration.WithLabelValues(chainLabel(h.ChainID)).Observe(time.Since(start).Seconds())
	status := "200"
	if err != nil {
		status = gwerrors.New(gwerrors.KindAllAttemptsFailed, nil).Kind.String()
		if ge, ok := gwerrors.As(err); ok {
			status = ge.Kind.String()
		}
	}
	h.Metrics.RequestsTotal.WithLabelValues(chainLabel(h.ChainID), metrics.SanitizeMethod(method), status).Inc()
}

// classify maps a pipeline error to the gateway's closed taxonomy. Errors
// already carrying a *gwerrors.Error (no-healthy-upstream, malformed)
// pass through unchanged; everything else becomes AllAttemptsFailed,
// except a context deadline, which becomes Timeout.
func classify(err error) *gwerrors.Error {
	if ge, ok := gwerrors.As(err); ok {
		return ge
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return gwerrors.New(gwerrors.KindTimeout, err)
	}
	return gwerrors.New(gwerrors.KindAllAttemptsFailed, err)
}

func chainLabel(id int64) string {
	return strconv.FormatInt(id, 10)
}

func outcomeLabel(k jsonrpc.OutcomeKind) string {
	switch k {
	case jsonrpc.Ok:
		return "ok"
	case jsonrpc.TransientFailure:
		return "transient"
	case jsonrpc.PermanentFailure:
		return "permanent"
	case jsonrpc.RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}
