package crawler

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// maxPermits caps the permit pool regardless of the link budget.
const maxPermits = 100

// session holds the mutable state shared by all concurrent fetch tasks of
// one crawl invocation: visited/failed membership, the global link budget,
// the stop flag, the permit pool and the error tally.
type session struct {
	visited  sync.Map
	failed   sync.Map
	inflight sync.Map

	budgetMu sync.Mutex
	total    int
	budget   int
	stopFlag atomic.Bool

	permits *semaphore.Weighted

	errMu  sync.Mutex
	errors map[string]int
}

// newSession sizes the permit pool at min(maxPermits, 2 x budget) so that
// concurrent exploration is not starved while total in-flight work stays
// bounded.
func newSession(budget int) *session {
	size := budget * 2
	if size > maxPermits {
		size = maxPermits
	}
	if size < 1 {
		size = 1
	}
	s := &session{
		budget:  budget,
		permits: semaphore.NewWeighted(int64(size)),
		errors:  make(map[string]int),
	}
	if budget <= 0 {
		s.stopFlag.Store(true)
	}
	return s
}

// acquire attempts a single atomic non-blocking permit grab. A saturated
// pool is the same outcome as hitting the limit: the fetch is skipped.
func (s *session) acquire() bool {
	return s.permits.TryAcquire(1)
}

func (s *session) release() {
	s.permits.Release(1)
}

// claim marks the URL as in flight. It returns false if another task
// already owns it, so no two tasks ever fetch (or count) the same URL.
func (s *session) claim(url string) bool {
	_, loaded := s.inflight.LoadOrStore(url, struct{}{})
	return !loaded
}

func (s *session) markVisited(url string) {
	s.visited.Store(url, struct{}{})
}

func (s *session) markFailed(url string) {
	s.failed.Store(url, struct{}{})
}

// seen reports whether the URL is already visited or permanently failed.
func (s *session) seen(url string) bool {
	if _, ok := s.visited.Load(url); ok {
		return true
	}
	_, ok := s.failed.Load(url)
	return ok
}

// countSuccess claims one unit of the link budget under the budget lock.
// It returns false when the budget is already spent: a fetch that was in
// flight when the budget ran out completes (accepted overshoot) but is
// not counted. Reaching the budget sets the stop flag. This is the only
// place the counter changes, so it never exceeds the budget.
func (s *session) countSuccess() bool {
	s.budgetMu.Lock()
	defer s.budgetMu.Unlock()

	if s.total >= s.budget {
		s.stopFlag.Store(true)
		return false
	}
	s.total++
	if s.total >= s.budget {
		s.stopFlag.Store(true)
	}
	return true
}

// stopped reports the cooperative cancellation signal. In-flight fetches
// finish naturally; no new fetch is admitted once it is set.
func (s *session) stopped() bool {
	return s.stopFlag.Load()
}

func (s *session) pages() int {
	s.budgetMu.Lock()
	defer s.budgetMu.Unlock()
	return s.total
}

func (s *session) recordError(kind string) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.errors[kind]++
}

// errorCounts returns a copy of the error-kind tally.
func (s *session) errorCounts() map[string]int {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	counts := make(map[string]int, len(s.errors))
	for kind, n := range s.errors {
		counts[kind] = n
	}
	return counts
}
