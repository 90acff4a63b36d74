package middleware

import (
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit configures one named token-bucket limit.
type RateLimit struct {
	RatePerSecond float64
	Burst         int
}

type rateEntry struct {
	limiter *rate.Limiter
}

// RateLimiter holds one token bucket per (limit, subject) pair. Each bucket is
// dropped five minutes after it was created, whether or not it is still in
// use; the next request for that pair starts a fresh bucket.
type RateLimiter struct {
	logger   *log.Logger
	limits   map[string]RateLimit
	mu       sync.RWMutex
	visitors map[string]*rateEntry
	clockNow func() time.Time
}

func NewRateLimiter(limits map[string]RateLimit, logger *log.Logger) *RateLimiter {
	if logger == nil {
		logger = log.Default()
	}
	return &RateLimiter{
		logger:   logger,
		limits:   limits,
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
	}
}

// AllowSubject applies the named limit keyed by a risk-engine subject's
// user_id rather than a client-supplied HTTP identifier. The decision
// handler calls this directly after decoding the request body, since the
// identifier the spec cares about throttling on (the subject) only exists
// once the JSON payload has been parsed.
func (r *RateLimiter) AllowSubject(limitKey, userID string) bool {
	limit, ok := r.limits[limitKey]
	if !ok {
		return true
	}
	bucketKey := limitKey + "|subject|" + userID
	limiter := r.obtainLimiter(bucketKey, limit)
	return limiter.AllowN(r.clockNow(), 1)
}

func (r *RateLimiter) obtainLimiter(id string, cfg RateLimit) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.visitors[id]
	if ok {
		return entry.limiter
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	r.visitors[id] = &rateEntry{limiter: limiter}
	go r.cleanup(id)
	return limiter
}

func (r *RateLimiter) cleanup(id string) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		r.mu.Lock()
		delete(r.visitors, id)
		r.mu.Unlock()
		return
	}
}
