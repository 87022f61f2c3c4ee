package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pacer enforces politeness before every request attempt: the fixed
// per-request delay, plus an optional per-domain rate limit.
type pacer struct {
	delay time.Duration
	rps   int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newPacer(delay time.Duration, rps int) *pacer {
	p := &pacer{delay: delay, rps: rps}
	if rps > 0 {
		p.limiters = make(map[string]*rate.Limiter)
	}
	return p
}

// wait blocks until the politeness constraints for the domain are
// satisfied or the context is cancelled.
func (p *pacer) wait(ctx context.Context, domain string) error {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.rps > 0 {
		return p.limiterFor(domain).Wait(ctx)
	}
	return nil
}

func (p *pacer) limiterFor(domain string) *rate.Limiter {
	domain = strings.ToLower(domain)

	p.mu.Lock()
	defer p.mu.Unlock()

	limiter, ok := p.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(p.rps), p.rps)
		p.limiters[domain] = limiter
	}
	return limiter
}
