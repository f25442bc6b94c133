package webhook

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-window rate limiter keyed by sender. Each sender
// has an independent counter that resets after window.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	buckets map[string]*windowBucket
	// pruneAt is the bucket count above which expired buckets are swept.
	pruneAt int
}

type windowBucket struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*windowBucket),
		pruneAt: 1024,
	}
}

// Allow reports whether key is within its limit and counts the attempt.
// A limit of zero or less disables limiting.
func (r *rateLimiter) Allow(key string) bool {
	if r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	b, ok := r.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		if !ok && len(r.buckets) >= r.pruneAt {
			r.prune(now)
		}
		r.buckets[key] = &windowBucket{count: 1, resetAt: now.Add(r.window)}
		return true
	}
	if b.count >= r.limit {
		return false
	}
	b.count++
	return true
}

// prune drops expired buckets so one-off senders do not accumulate. When
// every bucket is live the threshold doubles. Caller holds r.mu.
func (r *rateLimiter) prune(now time.Time) {
	for k, b := range r.buckets {
		if !now.Before(b.resetAt) {
			delete(r.buckets, k)
		}
	}
	if len(r.buckets) >= r.pruneAt {
		r.pruneAt *= 2
	}
}

func (r *rateLimiter) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
