package crawler

import (
	"log/slog"
	"sync"
	"time"
)

// CircuitBreaker isolates failing domains: after threshold consecutive
// failures a domain is blocked until the open timeout elapses. The open
// state is lifted only by the timeout, never by a later success, since
// successes cannot be observed while the domain is being skipped.
type CircuitBreaker struct {
	threshold int
	timeout   time.Duration
	logger    *slog.Logger

	mu        sync.Mutex
	failures  map[string]int
	openUntil map[string]time.Time
}

// NewCircuitBreaker creates a breaker that opens a domain after threshold
// consecutive failures and closes it again once timeout has elapsed.
func NewCircuitBreaker(threshold int, timeout time.Duration, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   timeout,
		logger:    logger,
		failures:  make(map[string]int),
		openUntil: make(map[string]time.Time),
	}
}

// RecordFailure counts a failure against the domain and opens the circuit
// when the threshold is reached.
func (b *CircuitBreaker) RecordFailure(domain string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[domain]++
	if b.failures[domain] >= b.threshold {
		if _, open := b.openUntil[domain]; !open {
			b.openUntil[domain] = time.Now().Add(b.timeout)
			b.logger.Warn("circuit breaker opened", "domain", domain)
		}
	}
}

// RecordSuccess resets the domain's consecutive-failure count. It has no
// effect on an already-open circuit.
func (b *CircuitBreaker) RecordSuccess(domain string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.failures[domain]; ok {
		b.failures[domain] = 0
	}
}

// IsOpen reports whether traffic to the domain is currently blocked.
// Crossing the open timeout closes the circuit and resets the failure
// count atomically from the caller's perspective.
func (b *CircuitBreaker) IsOpen(domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, ok := b.openUntil[domain]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(b.openUntil, domain)
		b.failures[domain] = 0
		b.logger.Info("circuit breaker closed", "domain", domain)
		return false
	}
	return true
}
