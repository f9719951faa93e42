package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)
	require.NotNil(t, r.RequestsTotal)

	r.RequestsTotal.WithLabelValues("1", "eth_chainId", "200").Inc()
	r.UpstreamHealthy.WithLabelValues("1", "http://a").Set(1)
	r.CoalesceWaiters.WithLabelValues("1").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
