package utility

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// KeyedLimiter hands out one token bucket per key. Idle keys are evicted once
// more than size keys are tracked.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewKeyedLimiter allows perMinute events per key, with bursts of up to burst events.
func NewKeyedLimiter(perMinute, burst, size int) *KeyedLimiter {
	if size <= 0 {
		size = 1024
	}
	if burst <= 0 {
		burst = 1
	}
	cache, _ := lru.New[string, *rate.Limiter](size)
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
	}
	return &KeyedLimiter{limiters: cache, limit: limit, burst: burst}
}

func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(key, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}
