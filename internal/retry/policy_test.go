package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunSucceedsFirstAttempt(t *testing.T) {
	p := Policy{MaxRetries: 3, RetryDelay: time.Millisecond}
	calls := 0
	v, err := Run(context.Background(), p, zap.NewNop(), func(ctx context.Context, n int) (any, Classification, error) {
		calls++
		return "ok", Success, nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 1, calls)
}

func TestRunStopsOnPermanentFailure(t *testing.T) {
	p := Policy{MaxRetries: 5, RetryDelay: time.Millisecond}
	calls := 0
	wantErr := errors.New("bad request")
	_, err := Run(context.Background(), p, zap.NewNop(), func(ctx context.Context, n int) (any, Classification, error) {
		calls++
		return nil, Permanent, wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 1, calls, "permanent failure must not retry")
}

func TestRunBoundsAttemptsAtMaxRetriesPlusOne(t *testing.T) {
	p := Policy{MaxRetries: 2, RetryDelay: time.Millisecond}
	calls := 0
	wantErr := errors.New("still down")
	_, err := Run(context.Background(), p, zap.NewNop(), func(ctx context.Context, n int) (any, Classification, error) {
		calls++
		return nil, Transient, wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 3, calls, "max_retries+1 total attempts")
}

func TestRunRecoversAfterTransientFailure(t *testing.T) {
	p := Policy{MaxRetries: 3, RetryDelay: time.Millisecond}
	calls := 0
	v, err := Run(context.Background(), p, zap.NewNop(), func(ctx context.Context, n int) (any, Classification, error) {
		calls++
		if calls < 2 {
			return nil, Transient, errors.New("flaky")
		}
		return "recovered", Success, nil
	})
	require.NoError(t, err)
	require.Equal(t, "recovered", v)
	require.Equal(t, 2, calls)
}

func TestRunStopsOnCancellation(t *testing.T) {
	p := Policy{MaxRetries: 10, RetryDelay: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Run(ctx, p, zap.NewNop(), func(ctx context.Context, n int) (any, Classification, error) {
		calls++
		return nil, Transient, errors.New("down")
	})
	require.ErrorIs(t, err, context.Canceled)
}
