package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evmgateway/rpcgateway/internal/cacheability"
	"github.com/evmgateway/rpcgateway/internal/coalesce"
	"github.com/evmgateway/rpcgateway/internal/gateway"
	"github.com/evmgateway/rpcgateway/internal/gwcache"
	"github.com/evmgateway/rpcgateway/internal/retry"
	"github.com/evmgateway/rpcgateway/internal/upstream"
)

type stubRegistry struct {
	handlers map[int64]*gateway.Handler
	ready    bool
}

func (s *stubRegistry) Handler(chainID int64) (*gateway.Handler, bool) {
	h, ok := s.handlers[chainID]
	return h, ok
}

func (s *stubRegistry) Ready() bool { return s.ready }

func newTestHandler(t *testing.T, upstreamURL string) *gateway.Handler {
	t.Helper()
	pool := upstream.NewPool([]upstream.Spec{{URL: upstreamURL, Timeout: time.Second, Weight: 1}})
	for _, u := range pool.All() {
		pool.Mark(u, upstream.Healthy)
	}
	sel, err := upstream.NewSelector("primary_only")
	require.NoError(t, err)

	return &gateway.Handler{
		ChainID:     1,
		Pool:        pool,
		Selector:    sel,
		Client:      upstream.NewClient(http.DefaultClient),
		Cache:       &gwcache.Disabled{},
		Cacheable:   cacheability.New(nil),
		Coalescer:   coalesce.NewGroup(time.Second, zap.NewNop()),
		RetryPolicy: retry.Policy{MaxRetries: 1, RetryDelay: time.Millisecond},
		Log:         zap.NewNop(),
	}
}

func TestServeRPCHappyPath(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":"x","result":"0x1"}`))
	}))
	defer upstreamSrv.Close()

	reg := &stubRegistry{handlers: map[int64]*gateway.Handler{1: newTestHandler(t, upstreamSrv.URL)}, ready: true}
	srv := httptest.NewServer(NewServer(reg, zap.NewNop(), 0).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/1", "application/json", strings.NewReader(`{"jsonrpc":"2.0","method":"eth_blockNumber","params":[],"id":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeRPCUnknownChainIs404(t *testing.T) {
	reg := &stubRegistry{handlers: map[int64]*gateway.Handler{}, ready: true}
	srv := httptest.NewServer(NewServer(reg, zap.NewNop(), 0).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/999", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthzAlwaysOK(t *testing.T) {
	reg := &stubRegistry{ready: false}
	srv := httptest.NewServer(NewServer(reg, zap.NewNop(), 0).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyzReflectsRegistry(t *testing.T) {
	reg := &stubRegistry{ready: false}
	srv := httptest.NewServer(NewServer(reg, zap.NewNop(), 0).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	reg.ready = true
	resp2, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}
