package gwconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  host: 0.0.0.0
  port: 8080
load_balancing:
  strategy: round_robin
error_handling:
  type: retry
  max_retries: 2
  retry_delay: 100ms
  jitter: true
cache:
  type: local
  capacity: 10000
request_coalescing:
  enabled: true
  timeout: 2s
upstream_health_checks:
  enabled: true
  interval: 5m
metrics:
  host: 0.0.0.0
  port: 9090
chains:
  1:
    upstreams:
      - url: $UPSTREAM_URL
        timeout: 10s
        weight: 1
`

func TestLoadInterpolatesEnvAndValidates(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "https://rpc.example.com")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://rpc.example.com", cfg.Chains[1].Upstreams[0].URL)
	require.Equal(t, "round_robin", cfg.LoadBalancing.Strategy)
	require.Equal(t, 2, cfg.ErrorHandling.MaxRetries)
}

func TestLoadLeavesUnresolvedEnvRefIntact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "$UPSTREAM_URL", cfg.Chains[1].Upstreams[0].URL)
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := &Config{
		LoadBalancing: LoadBalancingConfig{Strategy: "bogus"},
		Chains:        map[int64]ChainConfig{1: {Upstreams: []UpstreamConfig{{URL: "http://a"}}}},
	}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsChainWithNoUpstreams(t *testing.T) {
	cfg := &Config{Chains: map[int64]ChainConfig{1: {}}}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveChainID(t *testing.T) {
	cfg := &Config{Chains: map[int64]ChainConfig{0: {Upstreams: []UpstreamConfig{{URL: "http://a"}}}}}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeMaxRetries(t *testing.T) {
	cfg := &Config{
		ErrorHandling: ErrorHandlingConfig{MaxRetries: -1},
		Chains:        map[int64]ChainConfig{1: {Upstreams: []UpstreamConfig{{URL: "http://a"}}}},
	}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsRedisCacheWithoutURL(t *testing.T) {
	cfg := &Config{
		Cache:  CacheConfig{Type: "redis"},
		Chains: map[int64]ChainConfig{1: {Upstreams: []UpstreamConfig{{URL: "http://a"}}}},
	}
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	cfg := &Config{Chains: map[int64]ChainConfig{1: {Upstreams: []UpstreamConfig{{URL: "http://a"}}}}}
	require.NoError(t, cfg.Validate())
}
