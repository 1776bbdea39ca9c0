package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter checks whether a request should be allowed based on the
// identity's service tier.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// InProcessLimiter is a fixed-window rate limiter tracking request counts
// per subject in memory. Tiers map a service tier name to its
// requests-per-minute budget; identities whose tier has no entry fall
// back to defaultRPM. A budget of zero or less means unlimited.
type InProcessLimiter struct {
	tiers      map[string]int
	defaultRPM int

	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter creates a rate limiter with per-tier budgets.
func NewInProcessLimiter(tiers map[string]int, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		counters:   make(map[string]*counter),
	}
}

// Allow checks if the request is within the rate limit. Fails open: any
// internal inconsistency allows the request.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.ServiceTier
	if tier == "" {
		tier = "default"
	}

	rpm := l.defaultRPM
	if v, ok := l.tiers[tier]; ok {
		rpm = v
	}

	if rpm <= 0 {
		return nil
	}

	key := identity.Subject + ":" + tier

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= time.Minute {
		l.counters[key] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > rpm {
		return ErrTooManyRequests
	}

	return nil
}
