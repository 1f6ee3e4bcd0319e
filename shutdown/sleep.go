package shutdown

import (
	"sync/atomic"
	"time"
)

// Sleep waits for d while polling the stop flag in short increments, so
// shutdown latency stays sub-second no matter how long the nominal
// sleep is. Returns false if the flag was set before d elapsed.
func Sleep(d time.Duration, stop *atomic.Bool) bool {
	const step = 200 * time.Millisecond
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if stop.Load() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining > step {
			remaining = step
		}
		time.Sleep(remaining)
	}
	return !stop.Load()
}
