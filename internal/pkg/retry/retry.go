// Package retry runs an operation with bounded exponential backoff, used to
// ride out transient store failures on the ingestion path.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/rollworks/oms/internal/config"
)

// Do runs fn up to Attempts times. The delay doubles per attempt, capped at
// Max; jitter spreads concurrent retriers so they do not hammer a
// recovering store in lockstep. Returns the last error once attempts are
// exhausted, or ctx.Err() when cancelled mid-wait.
func Do(ctx context.Context, retryPolicy config.Retry, fn func() error) error {
	d := retryPolicy.Base
	var err error

	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < retryPolicy.Attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}

		delay := d
		if retryPolicy.JitterFactor > 0 {
			jitter := 1 + retryPolicy.JitterFactor*(2*r.Float64()-1)
			delay = time.Duration(float64(delay) * jitter)
		}
		if retryPolicy.Max > 0 && delay > retryPolicy.Max {
			delay = retryPolicy.Max
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		d *= 2
		if retryPolicy.Max > 0 && d > retryPolicy.Max {
			d = retryPolicy.Max
		}
	}
	return err
}
