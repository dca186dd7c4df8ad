package fetcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter bounds requests per host: at most maxConcurrent callers pass
// Wait at once, and admissions follow a token bucket refilled at rpm per
// minute with a burst of rpm.
type RateLimiter struct {
	maxConcurrent int
	rpm           int
	hosts         map[string]*hostLimiter
	mu            sync.Mutex
}

type hostLimiter struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

func NewRateLimiter(maxConcurrent, rpm int) *RateLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &RateLimiter{
		maxConcurrent: maxConcurrent,
		rpm:           rpm,
		hosts:         make(map[string]*hostLimiter),
	}
}

func (rl *RateLimiter) host(host string) *hostLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	h, ok := rl.hosts[host]
	if !ok {
		h = &hostLimiter{sem: make(chan struct{}, rl.maxConcurrent)}
		if rl.rpm > 0 {
			h.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.rpm)), rl.rpm)
		}
		rl.hosts[host] = h
	}
	return h
}

// Wait blocks until a request to host may start. It fails early when ctx
// ends or its deadline is too close for a token to become available.
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	h := rl.host(host)

	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-h.sem }()

	if h.limiter == nil {
		return nil
	}
	return h.limiter.Wait(ctx)
}
