package ratelimit

import (
	"context"
	"time"
)

// Gate bounds outbound request pressure: at most maxConcurrent requests
// in flight and no more than refillPerSec requests per second overall.
type Gate struct {
	limiter      *Limiter
	sem          chan struct{}
	key          string
	capacity     float64
	refillPerSec float64
}

// NewGate creates a gate with the given concurrency and rate bounds.
func NewGate(maxConcurrent int, refillPerSec float64) *Gate {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Gate{
		limiter:      New(),
		sem:          make(chan struct{}, maxConcurrent),
		key:          "gate",
		capacity:     float64(maxConcurrent),
		refillPerSec: refillPerSec,
	}
}

// Acquire blocks until a concurrency slot and a rate token are both
// available, or the context is cancelled.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	for !g.limiter.Allow(g.key, g.capacity, g.refillPerSec) {
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			<-g.sem
			return ctx.Err()
		}
	}
	return nil
}

// Release frees the concurrency slot taken by Acquire.
func (g *Gate) Release() {
	<-g.sem
}
