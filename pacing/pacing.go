// Package pacing spaces out mutating calls to the Discord API.
package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between two mutating calls.
const DefaultInterval = 500 * time.Millisecond

// Pacer hands out permission to issue one remote mutation at a time, at a
// fixed rate. A single Pacer is shared by every call site.
type Pacer struct {
	limiter *rate.Limiter
}

// New returns a pacer allowing one call per interval, with up to burst calls
// allowed back to back after an idle period. A non-positive interval
// disables pacing.
func New(interval time.Duration, burst int) *Pacer {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, burst)}
}

// Unpaced returns a pacer that never waits.
func Unpaced() *Pacer {
	return New(0, 1)
}

// Wait blocks until the next call may be issued or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

