package ingest

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

const secondsPerMinute = 60.0

// KeyedLimiter paces request issue per source id. Each key gets its own
// rate.Limiter so parallel fetches of different sources never wait on each
// other; only the map itself is guarded.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewKeyedLimiter creates an empty keyed limiter.
func NewKeyedLimiter() *KeyedLimiter {
	return &KeyedLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until a request for key may be issued. rpm <= 0 disables
// pacing for that key. The limiter reserves the slot at issue time, so the
// enforced gap between successive requests is 60/rpm seconds regardless of
// how long each request takes.
func (k *KeyedLimiter) Wait(ctx context.Context, key string, rpm int) error {
	if rpm <= 0 {
		return nil
	}

	k.mu.Lock()

	limiter, ok := k.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/secondsPerMinute), 1)
		k.limiters[key] = limiter
	}

	k.mu.Unlock()

	return limiter.Wait(ctx)
}
