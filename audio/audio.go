// Package audio provides capture sources: the default microphone and a
// process-session loopback tap. Backends deliver data on their own
// callback threads; a Source converts that into a blocking pull API so
// the capture pipeline can run as a plain loop.
package audio

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
	"time"
)

const WAVHeaderSize = 44

// readWait bounds how long ReadFrames blocks when no data arrives.
// An expired wait is an empty read, not an error.
const readWait = time.Second

// ErrInvalidated signals that the device or session backing a Source is
// gone (sleep/wake, unplug, default-device change). The Source must be
// discarded and a fresh one constructed.
var ErrInvalidated = errors.New("audio: capture invalidated")

type Config struct {
	SampleRate uint32
	Channels   uint32
}

// Source is one stream of 16-bit mono PCM.
//
// ReadFrames blocks until data is available or readWait expires and
// returns one of: a non-empty batch, an empty batch (nil, nil — the
// backend simply had nothing ready this cycle), or ErrInvalidated.
// Callers must treat the empty batch exactly like a tick with no data.
type Source interface {
	Start() error
	ReadFrames() ([]int16, error)
	Stop()
}

// frameSink adapts a push-style backend callback to the pull-style
// Source contract. The callback side never blocks: if the consumer
// falls behind, batches are dropped and counted.
type frameSink struct {
	frames  chan []int16
	invalid atomic.Bool
	dropped atomic.Uint64
}

func newFrameSink() *frameSink {
	return &frameSink{frames: make(chan []int16, 64)}
}

func (s *frameSink) push(samples []int16) {
	if len(samples) == 0 {
		return
	}
	select {
	case s.frames <- samples:
	default:
		s.dropped.Add(1)
	}
}

// pushBytes decodes little-endian 16-bit PCM from a backend callback
// buffer. The buffer is owned by the backend, so samples are copied out.
func (s *frameSink) pushBytes(data []byte) {
	if len(data) < 2 {
		return
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	s.push(samples)
}

func (s *frameSink) invalidate() {
	s.invalid.Store(true)
}

func (s *frameSink) read() ([]int16, error) {
	// Drain buffered audio before reporting invalidation so the tail of
	// a dying device still reaches the segmenter.
	select {
	case b := <-s.frames:
		return b, nil
	default:
	}
	if s.invalid.Load() {
		return nil, ErrInvalidated
	}
	select {
	case b := <-s.frames:
		return b, nil
	case <-time.After(readWait):
		if s.invalid.Load() {
			return nil, ErrInvalidated
		}
		return nil, nil
	}
}

func (s *frameSink) droppedBatches() uint64 {
	return s.dropped.Load()
}
