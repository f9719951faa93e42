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

// Package retry wraps an attempt function with bounded, jittered
// exponential backoff. It drives the interval math through
// cenkalti/backoff's ExponentialBackOff (its RandomizationFactor already
// implements a uniform [1-f, 1+f) multiplier, so f=0.5 is exactly this
// gateway's jitter range), but owns the attempt loop itself since each
// attempt must re-invoke the selector and must stop immediately on a
// permanent failure.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Classification is how the caller's attempt function reports whether the
// outer loop should retry.
type Classification int

const (
	// Success ends the loop with a result.
	Success Classification = iota
	// Transient is retryable.
	Transient
	// Permanent aborts the loop immediately.
	Permanent
)

// Policy is the configured retry behavior: total attempts = MaxRetries+1.
type Policy struct {
	MaxRetries int
	RetryDelay time.Duration
	Jitter     bool
}

// Attempt is called once per try. It returns the classification of the
// outcome and, for Success, the value to return from Run.
type Attempt func(ctx context.Context, attemptNumber int) (value any, class Classification, err error)

// Run executes fn up to p.MaxRetries+1 times, sleeping a jittered
// exponential backoff between attempts, stopping immediately on Success,
// Permanent, or ctx cancellation. It returns the last error seen (nil on
// success).
func Run(ctx context.Context, p Policy, log *zap.Logger, fn Attempt) (any, error) {
	b := newBackOff(p)

	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries+1; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		value, class, err := fn(ctx, attempt)
		switch class {
		case Success:
			return value, nil
		case Permanent:
			return nil, err
		case Transient:
			lastErr = err
		}

		if attempt == p.MaxRetries+1 {
			break
		}

		delay, berr := b.NextBackOff()
		if berr != nil {
			break
		}
		log.Debug("retrying after transient failure",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func newBackOff(p Policy) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.RetryDelay
	b.Multiplier = 2
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0 // attempts are bounded by count, not elapsed time
	if p.Jitter {
		b.RandomizationFactor = 0.5
	} else {
		b.RandomizationFactor = 0
	}
	return b
}
