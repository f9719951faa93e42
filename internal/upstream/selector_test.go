package upstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testView(n int) HealthyView {
	view := make(HealthyView, n)
	for i := 0; i < n; i++ {
		view[i] = newUpstream(i, "http://upstream", time.Second, 1)
	}
	return view
}

func TestPrimaryOnlyAlwaysFirst(t *testing.T) {
	view := testView(3)
	sel := PrimaryOnlySelector{}
	req := sel.NewRequest()
	for i := 0; i < 5; i++ {
		u, err := req.Next(view)
		require.NoError(t, err)
		require.Same(t, view[0], u)
	}
}

func TestPrimaryOnlyNoHealthy(t *testing.T) {
	sel := PrimaryOnlySelector{}
	_, err := sel.NewRequest().Next(nil)
	require.Error(t, err)
}

func TestRoundRobinFairnessAcrossRequests(t *testing.T) {
	view := testView(4)
	sel := &RoundRobinSelector{}

	counts := make(map[*Upstream]int)
	const requests = 400
	for i := 0; i < requests; i++ {
		u, err := sel.NewRequest().Next(view)
		require.NoError(t, err)
		counts[u]++
	}
	for _, u := range view {
		require.Equal(t, requests/len(view), counts[u], "round robin must distribute evenly across requests")
	}
}

func TestRoundRobinDoesNotRepeatWithinRequestRetries(t *testing.T) {
	view := testView(3)
	sel := &RoundRobinSelector{}
	req := sel.NewRequest()

	first, err := req.Next(view)
	require.NoError(t, err)
	second, err := req.Next(view)
	require.NoError(t, err)
	require.NotSame(t, first, second, "retry within one request must not repeat the previous upstream")
}

func TestRoundRobinSingleUpstreamRepeatsIsAllowed(t *testing.T) {
	view := testView(1)
	sel := &RoundRobinSelector{}
	req := sel.NewRequest()
	first, err := req.Next(view)
	require.NoError(t, err)
	second, err := req.Next(view)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestWeightedNeverRepeatsWithMultipleUpstreams(t *testing.T) {
	view := testView(2)
	sel := &WeightedSelector{}
	req := sel.NewRequest()

	for i := 0; i < 50; i++ {
		first, err := req.Next(view)
		require.NoError(t, err)
		second, err := req.Next(view)
		require.NoError(t, err)
		require.NotSame(t, first, second)
		req = sel.NewRequest()
	}
}

func TestNewSelectorKnownStrategies(t *testing.T) {
	for _, s := range []string{"", "primary_only", "round_robin", "weighted"} {
		sel, err := NewSelector(s)
		require.NoError(t, err)
		require.NotNil(t, sel)
	}
	_, err := NewSelector("bogus")
	require.Error(t, err)
}
