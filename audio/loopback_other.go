//go:build !windows

package audio

import "fmt"

// Loopback capture requires WASAPI. On other platforms the source fails
// at Start and the process monitor retries on its next discovery tick.
type unsupportedLoopback struct {
	pid int
}

func NewLoopbackSource(pid int, _ Config) Source {
	return &unsupportedLoopback{pid: pid}
}

func (l *unsupportedLoopback) Start() error {
	return fmt.Errorf("application loopback capture is only supported on Windows (pid %d)", l.pid)
}

func (l *unsupportedLoopback) ReadFrames() ([]int16, error) {
	return nil, ErrInvalidated
}

func (l *unsupportedLoopback) Stop() {}
