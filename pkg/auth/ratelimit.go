package auth

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether an identity may make another request.
type RateLimiter interface {
	Allow(ctx context.Context, id *Identity) error
}

// TierConfig holds the rate limit of a service tier.
type TierConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Burst defaults to RequestsPerMinute when zero.
	Burst int `yaml:"burst"`
}

// TokenBucketLimiter keeps one token bucket per subject and tier.
type TokenBucketLimiter struct {
	tiers       map[string]TierConfig
	defaultTier TierConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var _ RateLimiter = (*TokenBucketLimiter)(nil)

// NewTokenBucketLimiter creates a limiter. Identities whose tier is not in
// tiers use defaultTier. A RequestsPerMinute of zero disables limiting.
func NewTokenBucketLimiter(tiers map[string]TierConfig, defaultTier TierConfig) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		tiers:       tiers,
		defaultTier: defaultTier,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Allow consumes one token for id or returns ErrTooManyRequests.
func (l *TokenBucketLimiter) Allow(_ context.Context, id *Identity) error {
	tier := id.Tier
	if tier == "" {
		tier = "default"
	}
	tc, ok := l.tiers[tier]
	if !ok {
		tc = l.defaultTier
	}
	if tc.RequestsPerMinute <= 0 {
		return nil
	}

	if !l.limiter(id.Subject+":"+tier, tc).Allow() {
		return ErrTooManyRequests
	}
	return nil
}

func (l *TokenBucketLimiter) limiter(key string, tc TierConfig) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		burst := tc.Burst
		if burst <= 0 {
			burst = tc.RequestsPerMinute
		}
		lim = rate.NewLimiter(rate.Limit(float64(tc.RequestsPerMinute)/60.0), burst)
		l.limiters[key] = lim
	}
	return lim
}
