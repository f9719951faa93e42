// Package metrics is the gateway's Prometheus registry: request counters
// and histograms, per-upstream health gauges, cache hit/miss counters, and
// coalescer waiter gauges, all built with the promauto pattern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// knownMethods bounds the "method" label to the JSON-RPC methods this
// gateway actually understands, so a client sending garbage or probing
// for unsupported methods can't grow the label's cardinality without
// bound.
var knownMethods = map[string]bool{
	"eth_chainId":                           true,
	"eth_blockNumber":                       true,
	"eth_gasPrice":                          true,
	"eth_maxPriorityFeePerGas":              true,
	"eth_feeHistory":                        true,
	"eth_syncing":                           true,
	"eth_accounts":                          true,
	"eth_call":                              true,
	"eth_estimateGas":                       true,
	"eth_createAccessList":                  true,
	"eth_getBalance":                        true,
	"eth_getCode":                           true,
	"eth_getStorageAt":                      true,
	"eth_getProof":                          true,
	"eth_getTransactionCount":               true,
	"eth_getBlockByHash":                     true,
	"eth_getBlockByNumber":                   true,
	"eth_getBlockReceipts":                  true,
	"eth_getBlockTransactionCountByHash":     true,
	"eth_getBlockTransactionCountByNumber":   true,
	"eth_getUncleByBlockHashAndIndex":        true,
	"eth_getUncleCountByBlockHash":           true,
	"eth_getUncleCountByBlockNumber":         true,
	"eth_getTransactionByHash":               true,
	"eth_getTransactionByBlockHashAndIndex":  true,
	"eth_getTransactionByBlockNumberAndIndex": true,
	"eth_getTransactionReceipt":              true,
	"eth_getLogs":                           true,
	"eth_newFilter":                         true,
	"eth_newBlockFilter":                    true,
	"eth_newPendingTransactionFilter":       true,
	"eth_getFilterChanges":                  true,
	"eth_getFilterLogs":                     true,
	"eth_uninstallFilter":                   true,
	"eth_sendRawTransaction":                true,
	"eth_sendTransaction":                   true,
	"eth_subscribe":                         true,
	"eth_unsubscribe":                       true,
	"net_version":                           true,
	"net_listening":                         true,
	"net_peerCount":                         true,
	"web3_clientVersion":                    true,
	"web3_sha3":                             true,
	"txpool_content":                        true,
	"txpool_status":                         true,
	"txpool_inspect":                        true,
}

// SanitizeMethod sanitizes a JSON-RPC method name for use as a metric
// label, collapsing anything outside the known method set to "other" so
// the label can't be used to grow cardinality without bound.
func SanitizeMethod(m string) string {
	if knownMethods[m] {
		return m
	}
	return "other"
}

const namespace = "rpcgateway"

// Registry holds every metric the gateway exports. One Registry is built
// at startup and threaded through the gateway and upstream packages.
type Registry struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	UpstreamCallsTotal *prometheus.CounterVec
	UpstreamHealthy    *prometheus.GaugeVec

	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	CoalesceWaiters *prometheus.GaugeVec
}

// NewRegistry registers every gateway metric against reg, a dedicated
// prometheus.NewRegistry() both in tests and in the run command, never the
// global default registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total JSON-RPC requests handled, by chain and outcome.",
		}, []string{"chain_id", "method", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency, by chain.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain_id"}),

		UpstreamCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Calls made to a specific upstream, by outcome classification.",
		}, []string{"chain_id", "upstream", "outcome"}),

		UpstreamHealthy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_healthy",
			Help:      "Upstream health state: 0=unknown, 1=healthy, 2=unhealthy, 3=terminated.",
		}, []string{"chain_id", "upstream"}),

		CacheHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache lookups served from cache, by chain.",
		}, []string{"chain_id"}),

		CacheMissesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups not served from cache, by chain.",
		}, []string{"chain_id"}),

		CoalesceWaiters: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coalesce_waiters",
			Help:      "Callers currently waiting on an in-flight coalesced request, by chain.",
		}, []string{"chain_id"}),
	}
}
