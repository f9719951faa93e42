package gateway

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evmgateway/rpcgateway/internal/gwconfig"
	"github.com/evmgateway/rpcgateway/internal/metrics"
	"github.com/evmgateway/rpcgateway/internal/upstream"
)

func TestBuildWiresOneHandlerPerChain(t *testing.T) {
	cfg := &gwconfig.Config{
		LoadBalancing: gwconfig.LoadBalancingConfig{Strategy: "round_robin"},
		ErrorHandling: gwconfig.ErrorHandlingConfig{MaxRetries: 1, RetryDelay: gwconfig.Duration(time.Millisecond)},
		Cache:         gwconfig.CacheConfig{Type: "local", Capacity: 10},
		Chains: map[int64]gwconfig.ChainConfig{
			1: {Upstreams: []gwconfig.UpstreamConfig{{URL: "http://a", Timeout: gwconfig.Duration(time.Second), Weight: 1}}},
			2: {Upstreams: []gwconfig.UpstreamConfig{{URL: "http://b", Timeout: gwconfig.Duration(time.Second), Weight: 1}}},
		},
	}

	reg, err := Build(cfg, metrics.NewRegistry(prometheus.NewRegistry()), zap.NewNop())
	require.NoError(t, err)

	h1, ok := reg.Handler(1)
	require.True(t, ok)
	require.Equal(t, int64(1), h1.ChainID)

	_, ok = reg.Handler(3)
	require.False(t, ok)
}

func TestReadyRequiresEveryChainHealthy(t *testing.T) {
	p1 := upstream.NewPool([]upstream.Spec{{URL: "http://a"}})
	p2 := upstream.NewPool([]upstream.Spec{{URL: "http://b"}})
	r := &Registry{handlers: map[int64]*Handler{
		1: {ChainID: 1, Pool: p1},
		2: {ChainID: 2, Pool: p2},
	}}

	require.False(t, r.Ready(), "no upstream probed healthy yet")

	p1.Mark(p1.All()[0], upstream.Healthy)
	require.False(t, r.Ready(), "chain 2 still has no healthy upstream")

	p2.Mark(p2.All()[0], upstream.Healthy)
	require.True(t, r.Ready())
}

func TestReadyStrictRequiresResolvedState(t *testing.T) {
	p := upstream.NewPool([]upstream.Spec{{URL: "http://a"}, {URL: "http://b"}})
	r := &Registry{strict: true, handlers: map[int64]*Handler{1: {ChainID: 1, Pool: p}}}

	require.False(t, r.Ready())

	p.Mark(p.All()[0], upstream.Healthy)
	require.False(t, r.Ready(), "second upstream still Unknown")

	p.Mark(p.All()[1], upstream.Terminated)
	require.True(t, r.Ready())
}
