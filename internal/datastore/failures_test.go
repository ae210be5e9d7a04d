package datastore

import (
	"errors"
	"testing"
	"time"
)

func TestFailureGate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := newFailureGate(2, time.Minute, func() time.Time { return now })
	fail := errors.New("unreachable")

	g.record(fail)
	if err := g.check("b"); err != nil {
		t.Fatalf("one failure should not close the gate: %v", err)
	}
	g.record(fail)
	if err := g.check("b"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen at the limit, got %v", err)
	}

	now = now.Add(time.Minute)
	if err := g.check("b"); err != nil {
		t.Fatalf("retry delay over, one task should go through: %v", err)
	}
	g.record(fail)
	if err := g.check("b"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatal("a failed retry should close the gate again")
	}

	now = now.Add(time.Minute)
	g.record(nil)
	if err := g.check("b"); err != nil || g.failures != 0 {
		t.Errorf("success should reset the gate, err=%v failures=%d", err, g.failures)
	}
}
