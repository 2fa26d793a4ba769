package channels

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// maxTrackedKeys caps the number of tracked rate-limit keys to prevent
	// memory exhaustion from attackers rotating source IPs/keys.
	maxTrackedKeys = 4096

	// staleAfter drops limiters that have not been used for this long.
	staleAfter = 5 * time.Minute
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// WebhookRateLimiter is a per-key token bucket (key = instance name or remote IP).
// Safe for concurrent use.
type WebhookRateLimiter struct {
	mu      sync.Mutex
	perMin  int
	entries map[string]*limiterEntry
}

// NewWebhookRateLimiter allows perMinute requests per key, with an equal burst.
// perMinute <= 0 disables limiting.
func NewWebhookRateLimiter(perMinute int) *WebhookRateLimiter {
	return &WebhookRateLimiter{perMin: perMinute, entries: make(map[string]*limiterEntry)}
}

// Allow returns true if the key is within rate limits.
// Stale entries are pruned when the key cap is reached.
func (r *WebhookRateLimiter) Allow(key string) bool {
	if r == nil || r.perMin <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if len(r.entries) >= maxTrackedKeys {
		for k, e := range r.entries {
			if now.Sub(e.lastSeen) >= staleAfter {
				delete(r.entries, k)
			}
		}
		// Hard eviction if still at cap
		for len(r.entries) >= maxTrackedKeys {
			for k := range r.entries {
				delete(r.entries, k)
				break
			}
		}
	}

	e, ok := r.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.perMin)), r.perMin)}
		r.entries[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}
