package pipeline

import (
	"fmt"

	"deskmic/vad"
)

// SegmenterConfig holds the per-source segmentation parameters. All
// values are fixed for the lifetime of a Segmenter.
type SegmenterConfig struct {
	SampleRate          int
	PreSpeechBufferSec  float64
	SilenceThresholdSec float64
	SpeechThreshold     float64
}

// Segmenter converts a stream of fixed-size chunks into speech-segment
// events with hysteresis: a segment opens on the first chunk scored at
// or above the speech threshold and closes only after a sustained run
// of silence. Silence inside an open segment is kept in the segment so
// trailing words are not clipped.
//
// A Segmenter is built fresh for every pipeline run; there is no
// carried state across source re-initialization.
type Segmenter struct {
	cfg      SegmenterConfig
	det      vad.Detector
	source   string
	window   *Window
	chunk    int
	silenceN int

	speaking   bool
	silenceRun int
}

func NewSegmenter(source string, det vad.Detector, cfg SegmenterConfig) *Segmenter {
	return &Segmenter{
		cfg:      cfg,
		det:      det,
		source:   source,
		window:   NewWindow(cfg.SampleRate, cfg.PreSpeechBufferSec),
		chunk:    vad.ChunkSize(cfg.SampleRate),
		silenceN: int(float64(cfg.SampleRate) * cfg.SilenceThresholdSec),
	}
}

// ChunkSize is the number of samples Process expects per call.
func (s *Segmenter) ChunkSize() int {
	return s.chunk
}

// Speaking reports whether a segment is currently open.
func (s *Segmenter) Speaking() bool {
	return s.speaking
}

// Process classifies one chunk and returns the resulting events, in
// order. Zero events means the chunk was silence outside a segment and
// went into the pre-roll window.
func (s *Segmenter) Process(chunk []int16) ([]Event, error) {
	if len(chunk) != s.chunk {
		return nil, fmt.Errorf("segmenter: got %d samples, want chunk of %d", len(chunk), s.chunk)
	}

	p, err := s.det.Probability(chunk)
	if err != nil {
		return nil, err
	}
	speech := p >= s.cfg.SpeechThreshold

	switch {
	case speech && !s.speaking:
		s.speaking = true
		s.silenceRun = 0
		initial := s.window.Drain()
		initial = append(initial, chunk...)
		return []Event{{
			Kind:       SpeechStart,
			Source:     s.source,
			Samples:    initial,
			SampleRate: s.cfg.SampleRate,
		}}, nil

	case speech && s.speaking:
		s.silenceRun = 0
		return []Event{{Kind: SpeechContinue, Source: s.source, Samples: copyChunk(chunk)}}, nil

	case !speech && s.speaking:
		// Trailing silence stays in the file; it counts toward the
		// close threshold but is never dropped.
		s.silenceRun += len(chunk)
		events := []Event{{Kind: SpeechContinue, Source: s.source, Samples: copyChunk(chunk)}}
		if s.silenceRun >= s.silenceN {
			s.speaking = false
			s.silenceRun = 0
			events = append(events, Event{Kind: SpeechEnd, Source: s.source})
		}
		return events, nil

	default:
		s.window.Push(chunk)
		return nil, nil
	}
}

// Flush closes any open segment. Called on shutdown and on fatal source
// errors so no segment is left open across a restart boundary.
func (s *Segmenter) Flush() []Event {
	if !s.speaking {
		return nil
	}
	s.speaking = false
	s.silenceRun = 0
	return []Event{{Kind: SpeechEnd, Source: s.source}}
}

// Reset returns the segmenter to its initial state without emitting
// events. Pre-roll and detector state are discarded.
func (s *Segmenter) Reset() {
	s.speaking = false
	s.silenceRun = 0
	s.window.Clear()
	s.det.Reset()
}

func copyChunk(chunk []int16) []int16 {
	out := make([]int16, len(chunk))
	copy(out, chunk)
	return out
}
