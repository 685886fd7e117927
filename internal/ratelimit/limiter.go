// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests per site.
//
// Every network attempt, plain fetch or browser navigation, waits on the
// limiter for its host before going out.
type RateLimiter interface {
	// Wait blocks until a request for the given URL can proceed.
	// If the context is cancelled before the rate limit allows, an error is returned.
	Wait(ctx context.Context, urlStr string) error

	// Allow checks if a request for the given URL can proceed immediately
	// without blocking. Returns true if allowed, false otherwise.
	Allow(urlStr string) bool
}

// DomainLimiter keeps one token bucket per site. Hosts that differ only by a
// leading "www." or "m." share a bucket.
type DomainLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	perHost  rate.Limit // Requests per second per host
	burst    int        // Burst capacity
}

// NewDomainLimiter creates a new rate limiter with the specified per-host rate
func NewDomainLimiter(requestsPerSecond float64, burst int) *DomainLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1.0 // Default: 1 request/sec per site
	}
	if burst <= 0 {
		burst = 2
	}

	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until the request for the given URL can proceed according to rate limits
func (dl *DomainLimiter) Wait(ctx context.Context, urlStr string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	key := siteKey(urlStr)
	if key == "" {
		// Invalid URL, let it proceed (will fail elsewhere)
		return nil
	}

	return dl.getLimiter(key).Wait(ctx)
}

// Allow checks if a request can proceed immediately without blocking
func (dl *DomainLimiter) Allow(urlStr string) bool {
	key := siteKey(urlStr)
	if key == "" {
		return true
	}
	return dl.getLimiter(key).Allow()
}

// getLimiter returns or creates a rate limiter for the given site
func (dl *DomainLimiter) getLimiter(key string) *rate.Limiter {
	dl.mu.RLock()
	limiter, exists := dl.limiters[key]
	dl.mu.RUnlock()

	if exists {
		return limiter
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := dl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(dl.perHost, dl.burst)
	dl.limiters[key] = limiter

	return limiter
}

// SetLimit overrides the rate for one site, e.g. from a site definition
func (dl *DomainLimiter) SetLimit(host string, requestsPerSecond float64, burst int) {
	key := trimHost(strings.ToLower(host))

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if limiter, exists := dl.limiters[key]; exists {
		limiter.SetLimit(rate.Limit(requestsPerSecond))
		limiter.SetBurst(burst)
	} else {
		dl.limiters[key] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// siteKey extracts the bucket key from a URL string
func siteKey(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return trimHost(strings.ToLower(u.Hostname()))
}

func trimHost(host string) string {
	for _, p := range []string{"www.", "m."} {
		if strings.HasPrefix(host, p) {
			return strings.TrimPrefix(host, p)
		}
	}
	return host
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context, _ string) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

func (Unlimited) Allow(string) bool { return true }
