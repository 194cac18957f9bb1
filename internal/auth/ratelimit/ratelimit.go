// Package ratelimit keeps one token bucket per API key.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTimeout is how long an unused bucket is kept.
const idleTimeout = 10 * time.Minute

// entry tracks the bucket of a single key.
type entry struct {
	limiter  *rate.Limiter
	perSec   float64
	lastSeen time.Time
}

// Limiter hands out per-key token buckets. Keys refill at a default rate
// unless Allow is given a key-specific one.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	rate    float64
	burst   int
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// New creates a limiter allowing perSecond requests per key on average with
// bursts of up to burst requests.
func New(perSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		entries: make(map[string]*entry),
		rate:    perSecond,
		burst:   burst,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow consumes one token of key's bucket and reports whether one was
// available. A positive perSecond overrides the default rate for the key.
func (l *Limiter) Allow(key string, perSecond float64) bool {
	if perSecond <= 0 {
		perSecond = l.rate
	}
	if perSecond <= 0 {
		return true
	}

	l.mu.Lock()
	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(perSecond), l.burst), perSec: perSecond}
		l.entries[key] = e
	} else if e.perSec != perSecond {
		e.limiter.SetLimitAt(now, rate.Limit(perSecond))
		e.perSec = perSecond
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Reset clears the rate-limit state for a specific key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Close stops the background cleanup.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.done) })
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *Limiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idleTimeout)
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
