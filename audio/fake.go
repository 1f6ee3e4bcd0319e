package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"
)

const fakeBatchSize = 1024

// Fake is a Source that plays a fixed PCM buffer, then reports empty
// reads forever. Used by the headless test mode and integration tests.
type Fake struct {
	mu      sync.Mutex
	pcm     []int16
	pos     int
	started bool

	drainedOnce sync.Once
	drained     chan struct{}
}

func NewFake(pcm []int16) *Fake {
	return &Fake{pcm: pcm, drained: make(chan struct{})}
}

// NewFakeFromWAV loads 16-bit mono PCM from a WAV file.
func NewFakeFromWAV(path string) (*Fake, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < WAVHeaderSize {
		return nil, fmt.Errorf("invalid WAV file %s: %d bytes", path, len(data))
	}
	data = data[WAVHeaderSize:]
	pcm := make([]int16, len(data)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return NewFake(pcm), nil
}

// Drained is closed once all PCM has been handed out.
func (f *Fake) Drained() <-chan struct{} { return f.drained }

func (f *Fake) Start() error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) ReadFrames() ([]int16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.pcm) {
		f.drainedOnce.Do(func() { close(f.drained) })
		// Keep the pacing of a quiet live device without busy-spinning
		// the pipeline loop.
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
		f.mu.Lock()
		return nil, nil
	}
	end := min(f.pos+fakeBatchSize, len(f.pcm))
	batch := make([]int16, end-f.pos)
	copy(batch, f.pcm[f.pos:end])
	f.pos = end
	return batch, nil
}

func (f *Fake) Stop() {
	f.mu.Lock()
	f.started = false
	f.mu.Unlock()
}
