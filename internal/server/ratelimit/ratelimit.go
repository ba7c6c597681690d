// Package ratelimit enforces per-client request budgets on the job API.
// Each client+route pair draws from a token bucket sized to the route's
// burst and refilled continuously at its sustained rate.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Info reports the outcome of one rate limit check, for response headers.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// bucket is the token budget for one client+route pair. Tokens refill
// continuously up to capacity; lastSeen drives idle eviction.
type bucket struct {
	mu       sync.Mutex
	capacity float64
	rate     float64 // tokens per second
	tokens   float64
	refilled time.Time
	lastSeen time.Time
}

func newBucket(capacity int, rate float64) *bucket {
	now := time.Now()
	return &bucket{
		capacity: float64(capacity),
		rate:     rate,
		tokens:   float64(capacity),
		refilled: now,
		lastSeen: now,
	}
}

// take refills the bucket for elapsed time and consumes one token when
// available. It reports whether the request may proceed, the whole tokens
// left, and when the bucket is full again.
func (b *bucket) take(now time.Time) (allowed bool, remaining int, reset time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = math.Min(b.capacity, b.tokens+now.Sub(b.refilled).Seconds()*b.rate)
	b.refilled = now
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		allowed = true
	}
	remaining = int(b.tokens)
	reset = now
	if b.tokens < b.capacity {
		reset = now.Add(time.Duration((b.capacity - b.tokens) / b.rate * float64(time.Second)))
	}
	return allowed, remaining, reset
}

func (b *bucket) idleSince(cutoff time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSeen.Before(cutoff)
}

// bucketTTL is how long an untouched client+route bucket survives sweeps.
const bucketTTL = time.Hour

// Limiter applies the configured route budgets across clients.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     *Config

	sweepTicker *time.Ticker
	sweepStop   chan struct{}
}

// NewLimiter creates a limiter over the given configuration. A nil config
// falls back to a permissive default budget.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = &Config{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
		}
	}

	l := &Limiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
	}
	if cfg.Enabled && cfg.CleanupInterval > 0 {
		l.sweepTicker = time.NewTicker(cfg.CleanupInterval)
		l.sweepStop = make(chan struct{})
		go l.sweepLoop()
	}
	return l
}

// Allow checks one request against the client's budget for the matched
// route. Whitelisted clients bypass budgets entirely; blacklisted clients
// are always denied.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.cfg.Enabled || l.cfg.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.cfg.Blacklist[clientID] {
		return false, Info{}
	}

	route := resolveRoute(path, method, l.cfg.EndpointConfigs, l.cfg.DefaultLimit, l.cfg.DefaultWindow)
	if route.Limit <= 0 {
		return true, Info{Allowed: true}
	}

	// Requests matching one route share a bucket per client, so
	// /jobs/{id} reads for different jobs draw from the same budget.
	b := l.bucketFor(clientID+" "+method+" "+route.Path, route)

	allowed, remaining, reset := b.take(time.Now())
	info := Info{
		Allowed:   allowed,
		Limit:     route.Limit,
		Remaining: remaining,
		ResetTime: reset,
	}
	if !allowed {
		if retry := time.Until(reset); retry > 0 {
			info.RetryAfter = retry
		}
	}
	return allowed, info
}

func (l *Limiter) bucketFor(key string, route EndpointConfig) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b
	}

	burst := route.Burst
	if burst <= 0 {
		burst = route.Limit
	}
	b := newBucket(burst, float64(route.Limit)/route.Window.Seconds())
	l.buckets[key] = b
	return b
}

func (l *Limiter) sweepLoop() {
	for {
		select {
		case <-l.sweepTicker.C:
			l.sweep(time.Now().Add(-bucketTTL))
		case <-l.sweepStop:
			return
		}
	}
}

// sweep evicts buckets untouched since the cutoff.
func (l *Limiter) sweep(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.idleSince(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Stop ends the idle sweep goroutine.
func (l *Limiter) Stop() {
	if l.sweepTicker != nil {
		l.sweepTicker.Stop()
	}
	if l.sweepStop != nil {
		close(l.sweepStop)
	}
}
