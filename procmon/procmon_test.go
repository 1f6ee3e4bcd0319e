package procmon

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakePipelines records every started pid and joins cooperatively when
// the monitor flips the per-pipeline stop flag.
type fakePipelines struct {
	mu      sync.Mutex
	started []int
}

func (f *fakePipelines) start(pid int, stop *atomic.Bool) <-chan struct{} {
	f.mu.Lock()
	f.started = append(f.started, pid)
	f.mu.Unlock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for !stop.Load() {
			time.Sleep(time.Millisecond)
		}
	}()
	return done
}

func (f *fakePipelines) pids() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.started))
	copy(out, f.started)
	return out
}

func runMonitor(m *Monitor, ticks int) {
	m.interval = time.Millisecond
	var stop atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(&stop)
	}()
	time.Sleep(time.Duration(ticks) * 5 * time.Millisecond)
	stop.Store(true)
	<-done
}

func TestLocksFirstCandidate(t *testing.T) {
	fp := &fakePipelines{}
	m := New([]string{"target.exe"}, fp.start)
	m.discover = func([]string) (int, bool) { return 100, true }
	m.alive = func(int) bool { return true }

	runMonitor(m, 5)

	pids := fp.pids()
	if len(pids) != 1 || pids[0] != 100 {
		t.Fatalf("started pids = %v, want exactly [100]", pids)
	}
	if m.ActivePid() != 0 {
		t.Fatalf("lock not released on shutdown: pid %d", m.ActivePid())
	}
}

func TestHoldsLockWhileLockedPidAlive(t *testing.T) {
	fp := &fakePipelines{}
	m := New([]string{"target.exe"}, fp.start)
	var calls atomic.Int64
	m.discover = func([]string) (int, bool) {
		if calls.Add(1) == 1 {
			return 100, true
		}
		// Enumeration keeps surfacing a different process of the same
		// application.
		return 200, true
	}
	m.alive = func(pid int) bool { return true }

	runMonitor(m, 10)

	pids := fp.pids()
	if len(pids) != 1 || pids[0] != 100 {
		t.Fatalf("lock did not hold: started %v, want [100]", pids)
	}
}

func TestReleasesAndRelocksOnDeath(t *testing.T) {
	fp := &fakePipelines{}
	m := New([]string{"target.exe"}, fp.start)
	var calls atomic.Int64
	m.discover = func([]string) (int, bool) {
		if calls.Add(1) == 1 {
			return 100, true
		}
		return 200, true
	}
	// The locked pid is gone; the new candidate is a genuine restart.
	m.alive = func(pid int) bool { return pid != 100 }

	runMonitor(m, 10)

	pids := fp.pids()
	if len(pids) < 2 || pids[0] != 100 || pids[1] != 200 {
		t.Fatalf("started pids = %v, want [100 200]", pids)
	}
}

func TestReleasesWhenTargetDisappears(t *testing.T) {
	fp := &fakePipelines{}
	m := New([]string{"target.exe"}, fp.start)
	var calls atomic.Int64
	m.discover = func([]string) (int, bool) {
		if calls.Add(1) == 1 {
			return 100, true
		}
		return 0, false
	}
	m.alive = func(int) bool { return false }

	runMonitor(m, 10)

	if pids := fp.pids(); len(pids) != 1 {
		t.Fatalf("started pids = %v, want single lock before release", pids)
	}
	if m.ActivePid() != 0 {
		t.Fatalf("lock still held after target disappeared: %d", m.ActivePid())
	}
}

func TestRelocksAfterPipelineSelfDeath(t *testing.T) {
	// Pipelines die immediately, simulating session invalidation; each
	// poll should release and re-lock.
	var mu sync.Mutex
	var started int
	start := func(pid int, stop *atomic.Bool) <-chan struct{} {
		mu.Lock()
		started++
		mu.Unlock()
		done := make(chan struct{})
		close(done)
		return done
	}
	m := New([]string{"target.exe"}, start)
	m.discover = func([]string) (int, bool) { return 100, true }
	m.alive = func(int) bool { return true }

	runMonitor(m, 10)

	mu.Lock()
	defer mu.Unlock()
	if started < 2 {
		t.Fatalf("pipeline restarted %d times, want at least 2", started)
	}
}

func TestFindTargetNoMatch(t *testing.T) {
	if pid, found := FindTarget([]string{"definitely-not-a-real-process.exe"}); found {
		t.Fatalf("found phantom process: pid %d", pid)
	}
}
