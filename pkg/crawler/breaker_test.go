package crawler

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute, discardLogger())

	b.RecordFailure("example.com")
	b.RecordFailure("example.com")
	assert.False(t, b.IsOpen("example.com"))

	b.RecordFailure("example.com")
	assert.True(t, b.IsOpen("example.com"))
}

func TestBreakerIsPerDomain(t *testing.T) {
	b := NewCircuitBreaker(1, time.Minute, discardLogger())

	b.RecordFailure("bad.example.com")
	assert.True(t, b.IsOpen("bad.example.com"))
	assert.False(t, b.IsOpen("good.example.com"))
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute, discardLogger())

	b.RecordFailure("example.com")
	b.RecordFailure("example.com")
	b.RecordSuccess("example.com")

	// The count restarted, so two more failures are not enough.
	b.RecordFailure("example.com")
	b.RecordFailure("example.com")
	assert.False(t, b.IsOpen("example.com"))

	b.RecordFailure("example.com")
	assert.True(t, b.IsOpen("example.com"))
}

func TestBreakerSuccessDoesNotCloseOpenCircuit(t *testing.T) {
	b := NewCircuitBreaker(2, time.Minute, discardLogger())

	b.RecordFailure("example.com")
	b.RecordFailure("example.com")
	assert.True(t, b.IsOpen("example.com"))

	b.RecordSuccess("example.com")
	assert.True(t, b.IsOpen("example.com"), "only the timeout may lift an open circuit")
}

func TestBreakerClosesAfterTimeoutAndResetsCount(t *testing.T) {
	b := NewCircuitBreaker(2, 20*time.Millisecond, discardLogger())

	b.RecordFailure("example.com")
	b.RecordFailure("example.com")
	assert.True(t, b.IsOpen("example.com"))

	time.Sleep(30 * time.Millisecond)
	assert.False(t, b.IsOpen("example.com"))

	// Closing reset the count: a single failure does not reopen.
	b.RecordFailure("example.com")
	assert.False(t, b.IsOpen("example.com"))
	b.RecordFailure("example.com")
	assert.True(t, b.IsOpen("example.com"))
}
