package pipeline

// Window is a bounded sample history used as the pre-roll buffer: it
// holds the most recent capacity samples in order, evicting the oldest
// first on overflow. It is exclusively owned by one pipeline runner.
type Window struct {
	buf []int16
	cap int
}

// NewWindow sizes the window to seconds of audio at the given rate.
func NewWindow(sampleRate int, seconds float64) *Window {
	c := int(float64(sampleRate) * seconds)
	if c < 0 {
		c = 0
	}
	return &Window{buf: make([]int16, 0, c), cap: c}
}

func (w *Window) Push(samples []int16) {
	if w.cap == 0 {
		return
	}
	if len(samples) >= w.cap {
		w.buf = append(w.buf[:0], samples[len(samples)-w.cap:]...)
		return
	}
	w.buf = append(w.buf, samples...)
	if excess := len(w.buf) - w.cap; excess > 0 {
		w.buf = append(w.buf[:0], w.buf[excess:]...)
	}
}

// Drain removes and returns all buffered samples in temporal order.
func (w *Window) Drain() []int16 {
	out := make([]int16, len(w.buf))
	copy(out, w.buf)
	w.buf = w.buf[:0]
	return out
}

func (w *Window) Clear() {
	w.buf = w.buf[:0]
}

func (w *Window) Len() int {
	return len(w.buf)
}

func (w *Window) Cap() int {
	return w.cap
}
