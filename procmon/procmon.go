// Package procmon tracks the target application's process identity and
// runs the loopback capture pipeline while it is alive.
package procmon

import (
	"strings"
	"sync/atomic"
	"time"

	ps "github.com/mitchellh/go-ps"

	"deskmic/log"
	"deskmic/shutdown"
)

const pollInterval = 5 * time.Second

// StartFunc launches a capture pipeline bound to pid on its own
// goroutine and returns a channel closed when the pipeline returns.
// The pipeline observes stop cooperatively.
type StartFunc func(pid int, stop *atomic.Bool) <-chan struct{}

// Monitor polls for the target process and supervises the loopback
// pipeline's existence.
//
// Identity policy: several processes of one application commonly share
// a single audio session, and enumeration order is arbitrary, so the
// first discovered pid is locked and held for as long as it stays
// alive. A scan surfacing a different candidate while the locked pid
// lives is ignored; only death of the locked pid releases the lock.
type Monitor struct {
	targets  []string
	interval time.Duration
	start    StartFunc

	// Injection points for tests; default to the go-ps implementations.
	discover func(names []string) (int, bool)
	alive    func(pid int) bool

	activePid int
}

func New(targets []string, start StartFunc) *Monitor {
	return &Monitor{
		targets:  targets,
		interval: pollInterval,
		start:    start,
		discover: FindTarget,
		alive:    PidAlive,
	}
}

// ActivePid returns the currently locked pid, 0 if none. Only valid
// from the Run goroutine (or after Run returns); exposed for tests.
func (m *Monitor) ActivePid() int {
	return m.activePid
}

// Run blocks until the flag is set. Any running pipeline is stopped and
// joined before returning.
func (m *Monitor) Run(stop *atomic.Bool) {
	var pipeStop *atomic.Bool
	var pipeDone <-chan struct{}

	release := func() {
		pipeStop.Store(true)
		<-pipeDone
		log.ProcessReleased(m.activePid)
		m.activePid = 0
		pipeStop, pipeDone = nil, nil
	}

	for shutdown.Sleep(m.interval, stop) {
		// A pipeline that died on its own (session invalidated, device
		// error) releases the lock; the next tick re-locks and restarts
		// if the target is still there.
		if m.activePid != 0 {
			select {
			case <-pipeDone:
				release()
			default:
			}
		}

		pid, found := m.discover(m.targets)
		switch {
		case m.activePid == 0 && found:
			pipeStop = &atomic.Bool{}
			pipeDone = m.start(pid, pipeStop)
			m.activePid = pid
			log.ProcessLocked(pid, strings.Join(m.targets, ","))

		case m.activePid != 0 && !found:
			release()

		case m.activePid != 0 && found && pid != m.activePid:
			if m.alive(m.activePid) {
				// Co-resident duplicate of the same application. The
				// locked pid is as good a representative as any; hold.
			} else {
				release()
			}
		}
	}

	if m.activePid != 0 {
		release()
	}
}

// FindTarget returns the pid of the first process whose executable name
// matches one of the candidates, case-insensitively. Candidate order
// wins over enumeration order.
func FindTarget(names []string) (int, bool) {
	procs, err := ps.Processes()
	if err != nil {
		log.Warnf("process enumeration failed: %v", err)
		return 0, false
	}
	for _, name := range names {
		for _, p := range procs {
			if strings.EqualFold(p.Executable(), name) {
				return p.Pid(), true
			}
		}
	}
	return 0, false
}

// PidAlive reports whether the pid still maps to a live process.
func PidAlive(pid int) bool {
	p, err := ps.FindProcess(pid)
	return err == nil && p != nil
}
