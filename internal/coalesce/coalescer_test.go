package coalesce

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunSingleFlight(t *testing.T) {
	g := NewGroup(time.Second, zap.NewNop())

	var calls int32
	start := make(chan struct{})
	factory := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-start
		return "result", nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := g.Run(context.Background(), 1, "k", factory)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "factory must run exactly once")
	for _, r := range results {
		require.Equal(t, "result", r)
	}
}

func TestRunTimeoutDetachesWaiter(t *testing.T) {
	g := NewGroup(20*time.Millisecond, zap.NewNop())

	done := make(chan struct{})
	factory := func() (any, error) {
		<-done
		return "late", nil
	}

	_, err := g.Run(context.Background(), 1, "slow", factory)
	require.ErrorIs(t, err, ErrTimeout)
	close(done)
}

func TestRunContextCancellation(t *testing.T) {
	g := NewGroup(time.Minute, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	factory := func() (any, error) {
		<-done
		return "late", nil
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := g.Run(ctx, 1, "k", factory)
	require.ErrorIs(t, err, context.Canceled)
	close(done)
}
