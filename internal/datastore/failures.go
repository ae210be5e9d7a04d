package datastore

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// MaxQueueFailures is the number of consecutive QueueSetTask failures after
// which a flush to that backend is aborted.
const MaxQueueFailures = 3

// queueRetryAfter is how long a backend that hit MaxQueueFailures is skipped.
const queueRetryAfter = 30 * time.Second

// ErrCircuitOpen aborts a flush after repeated backend failures.
var ErrCircuitOpen = errors.New("backend circuit open")

// failureGate counts consecutive QueueSetTask failures of one backend. Once
// the limit is reached the backend is skipped until retryAfter has passed;
// then one task goes through and a single further failure closes the gate
// again.
type failureGate struct {
	mu         sync.Mutex
	limit      int
	retryAfter time.Duration
	now        func() time.Time
	failures   int
	trippedAt  time.Time
}

func newFailureGate(limit int, retryAfter time.Duration, now func() time.Time) *failureGate {
	return &failureGate{limit: limit, retryAfter: retryAfter, now: now}
}

// check returns ErrCircuitOpen while the backend is being skipped.
func (g *failureGate) check(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failures >= g.limit && g.now().Sub(g.trippedAt) < g.retryAfter {
		return fmt.Errorf("flush to %s: %w after %d failures", id, ErrCircuitOpen, g.failures)
	}
	return nil
}

// record notes the result of one QueueSetTask call.
func (g *failureGate) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err == nil {
		g.failures = 0
		return
	}
	g.failures++
	if g.failures >= g.limit {
		g.trippedAt = g.now()
	}
}
