package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter implements a token bucket per caller. Callers are keyed by a
// pluggable KeyFunc so session creation can be limited per merchant
// credential rather than per IP when one sits behind a proxy.
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket

	requestsPerMinute int
	burstSize         int
	keyFunc           KeyFunc

	cleanupInterval time.Duration
	lastCleanup     time.Time
}

// KeyFunc derives the rate-limiting key from a request.
type KeyFunc func(r *http.Request) string

// bucket tracks rate limit state for a single key.
type bucket struct {
	tokens       float64
	lastRefill   time.Time
	lastRequest  time.Time
	requestCount int
}

// IPKey keys requests by remote IP.
func IPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AuthorizationKey keys requests by the Authorization header, falling back
// to the remote IP for unauthenticated requests.
func AuthorizationKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return auth
	}
	return IPKey(r)
}

// NewRateLimiter creates a rate limiter allowing requestsPerMinute sustained
// requests per key with bursts up to burstSize.
func NewRateLimiter(requestsPerMinute, burstSize int, keyFunc KeyFunc) *RateLimiter {
	if keyFunc == nil {
		keyFunc = IPKey
	}
	return &RateLimiter{
		buckets:           make(map[string]*bucket),
		requestsPerMinute: requestsPerMinute,
		burstSize:         burstSize,
		keyFunc:           keyFunc,
		cleanupInterval:   5 * time.Minute,
		lastCleanup:       time.Now(),
	}
}

// Allow checks whether a request under the given key should be admitted.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) > rl.cleanupInterval {
		rl.cleanup()
	}

	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{
			tokens:      float64(rl.burstSize),
			lastRefill:  time.Now(),
			lastRequest: time.Now(),
		}
		rl.buckets[key] = b
	}

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * (float64(rl.requestsPerMinute) / 60.0)
	if b.tokens > float64(rl.burstSize) {
		b.tokens = float64(rl.burstSize)
	}
	b.lastRefill = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		b.lastRequest = now
		b.requestCount++
		return true
	}
	return false
}

// Middleware rejects over-limit requests with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rl.keyFunc(r)) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cleanup removes buckets idle for over 10 minutes.
func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for key, b := range rl.buckets {
		if b.lastRequest.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
	rl.lastCleanup = time.Now()
}

// Stats returns counters about the limiter, for monitoring.
func (rl *RateLimiter) Stats() map[string]interface{} {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	totalRequests := 0
	for _, b := range rl.buckets {
		totalRequests += b.requestCount
	}

	return map[string]interface{}{
		"active_keys":      len(rl.buckets),
		"total_requests":   totalRequests,
		"requests_per_min": rl.requestsPerMinute,
		"burst_size":       rl.burstSize,
	}
}
