package sweeper

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeTarget struct {
	mu        sync.Mutex
	calls     int
	leaseMs   int64
	sweptEach int
	err       error
}

func (f *fakeTarget) SweepExpired(leaseMs int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.leaseMs = leaseMs
	return f.sweptEach, f.err
}

func (f *fakeTarget) snapshot() (calls int, leaseMs int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.leaseMs
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestSweeperTicksRegisteredTargets(t *testing.T) {
	target := &fakeTarget{sweptEach: 2}
	s := New(Config{Interval: 5 * time.Millisecond, DefaultLeaseSeconds: 10}, nil)
	s.Register("orders/us-east", target, 0)
	s.Start()
	defer s.Stop()

	waitFor(t, time.Second, func() bool {
		calls, _ := target.snapshot()
		return calls > 0
	})

	_, leaseMs := target.snapshot()
	if leaseMs != 10*1000 {
		t.Fatalf("leaseMs = %d, want %d", leaseMs, 10*1000)
	}
}

func TestSweeperUnregisterStopsCalls(t *testing.T) {
	target := &fakeTarget{}
	s := New(Config{Interval: 5 * time.Millisecond}, nil)
	s.Register("orders/us-east", target, 1)
	s.Start()
	defer s.Stop()

	waitFor(t, time.Second, func() bool {
		calls, _ := target.snapshot()
		return calls > 0
	})
	s.Unregister("orders/us-east")

	calls, _ := target.snapshot()
	time.Sleep(30 * time.Millisecond)
	after, _ := target.snapshot()
	if after > calls+1 {
		t.Fatalf("expected calls to stop growing after unregister, got %d -> %d", calls, after)
	}
}

func TestSweeperToleratesTargetError(t *testing.T) {
	target := &fakeTarget{err: errors.New("boom")}
	s := New(Config{Interval: 5 * time.Millisecond}, nil)
	s.Register("orders/us-east", target, 1)
	s.Start()
	defer s.Stop()

	waitFor(t, time.Second, func() bool {
		calls, _ := target.snapshot()
		return calls > 1
	})
}
