// Package vad classifies fixed-size audio chunks as speech or not.
package vad

import (
	"encoding/binary"
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	vadMode    = 3  // most aggressive filtering of non-speech
	vadFrameMs = 20 // webrtcvad frame length
)

// ChunkSize returns the classifier chunk size in samples for a sample
// rate: 512 at 16 kHz, 256 at 8 kHz.
func ChunkSize(sampleRate int) int {
	if sampleRate == 8000 {
		return 256
	}
	return 512
}

// Detector scores one chunk at a time, in arrival order. A Detector is
// owned by exactly one pipeline runner and is not safe for concurrent
// use.
type Detector interface {
	// Probability returns the speech probability of the chunk in [0, 1].
	Probability(chunk []int16) (float64, error)
	// Reset discards carried state; used on source re-initialization.
	Reset()
}

// WebRTC scores chunks with the WebRTC voice-activity model. The model
// consumes 20 ms frames, which do not align with the 512/256-sample
// chunk size, so partial frames are carried over between calls and the
// per-chunk probability is the voiced-frame ratio of the frames
// completed by that chunk.
type WebRTC struct {
	vad        *webrtcvad.VAD
	sampleRate int
	frameBytes int
	buf        []byte
	last       float64
}

func NewWebRTC(sampleRate int) (*WebRTC, error) {
	if sampleRate != 8000 && sampleRate != 16000 {
		return nil, fmt.Errorf("vad: unsupported sample rate %d (need 8000 or 16000)", sampleRate)
	}
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &WebRTC{
		vad:        v,
		sampleRate: sampleRate,
		frameBytes: sampleRate * vadFrameMs / 1000 * 2,
	}, nil
}

func (w *WebRTC) Probability(chunk []int16) (float64, error) {
	off := len(w.buf)
	w.buf = append(w.buf, make([]byte, len(chunk)*2)...)
	for i, s := range chunk {
		binary.LittleEndian.PutUint16(w.buf[off+i*2:], uint16(s))
	}

	var total, voiced int
	for len(w.buf) >= w.frameBytes {
		frame := w.buf[:w.frameBytes]
		w.buf = w.buf[w.frameBytes:]

		active, err := w.vad.Process(w.sampleRate, frame)
		if err != nil {
			return 0, fmt.Errorf("vad process: %w", err)
		}
		total++
		if active {
			voiced++
		}
	}
	if total == 0 {
		// Chunk too small to complete a frame; repeat the last score.
		return w.last, nil
	}
	w.last = float64(voiced) / float64(total)
	return w.last, nil
}

func (w *WebRTC) Reset() {
	w.buf = w.buf[:0]
	w.last = 0
}
