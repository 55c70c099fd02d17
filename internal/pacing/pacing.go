package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Delayer produces the randomized pause applied before every provider
// call. Fixed-interval sends are a detectable automation signature, so the
// delay is sampled uniformly from [min, max] per send. The wait must elapse
// fully before the send regardless of load; it is a product requirement,
// not a throughput knob.
type Delayer struct {
	min time.Duration
	max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Delayer sampling uniformly from [min, max].
// Panics if max < min; that is a configuration bug.
func New(min, max time.Duration) *Delayer {
	if max < min {
		panic("pacing: max delay below min")
	}
	return &Delayer{
		min: min,
		max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sample returns one uniformly distributed delay. Exposed separately from
// Wait so the distribution can be tested without sleeping.
func (d *Delayer) Sample() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	span := d.max - d.min
	if span == 0 {
		return d.min
	}
	return d.min + time.Duration(d.rng.Int63n(int64(span)+1))
}

// Wait blocks for one sampled delay or until ctx is cancelled.
// Returns ctx.Err() only on cancellation.
func (d *Delayer) Wait(ctx context.Context) error {
	timer := time.NewTimer(d.Sample())
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
