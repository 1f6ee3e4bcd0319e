package pipeline

import (
	"errors"
	"sync/atomic"
	"testing"

	"deskmic/audio"
)

// scriptSource replays a fixed sequence of reads. A nil entry is an
// empty read. After the script (and the optional final error) is
// exhausted it sets the shared stop flag so the runner exits.
type scriptSource struct {
	reads    [][]int16
	finalErr error
	stop     *atomic.Bool

	i        int
	started  bool
	stopped  bool
	startErr error
}

func (s *scriptSource) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *scriptSource) ReadFrames() ([]int16, error) {
	if s.i < len(s.reads) {
		r := s.reads[s.i]
		s.i++
		return r, nil
	}
	if s.finalErr != nil {
		return nil, s.finalErr
	}
	s.stop.Store(true)
	return nil, nil
}

func (s *scriptSource) Stop() { s.stopped = true }

func runScript(t *testing.T, src *scriptSource) ([]Event, error) {
	t.Helper()
	seg := testSegmenter(2048.0 / 16000.0)
	events := make(chan Event, 1024)
	err := Run(src, seg, events, src.stop)
	close(events)
	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	return got, err
}

func TestRunnerEmptyReadsAreNormal(t *testing.T) {
	n := 512
	src := &scriptSource{
		stop: &atomic.Bool{},
		reads: [][]int16{
			nil, nil,
			speechChunk(n),
			nil, nil, nil,
			speechChunk(n),
			nil,
		},
	}

	got, err := runScript(t, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Start, Continue, then flush-End on shutdown.
	want := []EventKind{SpeechStart, SpeechContinue, SpeechEnd}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want kinds %v", got, want)
	}
	for i, ev := range got {
		if ev.Kind != want[i] {
			t.Fatalf("event %d = %v, want %v", i, ev.Kind, want[i])
		}
	}
	if !src.started || !src.stopped {
		t.Fatal("source not started/stopped by runner")
	}
}

func TestRunnerChunksAcrossBatchBoundaries(t *testing.T) {
	// 1280 speech samples split into uneven batches: two full chunks
	// plus a 256-sample remainder that stays pending.
	mk := func(n int) []int16 {
		b := make([]int16, n)
		for i := range b {
			b[i] = 1000
		}
		return b
	}
	src := &scriptSource{
		stop:  &atomic.Bool{},
		reads: [][]int16{mk(300), mk(300), mk(300), mk(380)},
	}

	got, err := runScript(t, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []EventKind{SpeechStart, SpeechContinue, SpeechEnd}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(got), len(want), got)
	}
	for i, ev := range got {
		if ev.Kind != want[i] {
			t.Fatalf("event %d = %v, want %v", i, ev.Kind, want[i])
		}
	}
}

func TestRunnerFatalErrorFlushesOpenSegment(t *testing.T) {
	src := &scriptSource{
		stop:     &atomic.Bool{},
		reads:    [][]int16{speechChunk(512)},
		finalErr: audio.ErrInvalidated,
	}

	got, err := runScript(t, src)
	if !errors.Is(err, audio.ErrInvalidated) {
		t.Fatalf("err = %v, want ErrInvalidated", err)
	}
	if len(got) != 2 || got[0].Kind != SpeechStart || got[1].Kind != SpeechEnd {
		t.Fatalf("events = %v, want Start then flush-End", got)
	}
	if !src.stopped {
		t.Fatal("source not stopped after fatal error")
	}
}

func TestRunnerStartErrorPropagates(t *testing.T) {
	boom := errors.New("no device")
	src := &scriptSource{stop: &atomic.Bool{}, startErr: boom}
	if _, err := runScript(t, src); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestRunnerStopWithoutSpeechEmitsNothing(t *testing.T) {
	src := &scriptSource{
		stop:  &atomic.Bool{},
		reads: [][]int16{make([]int16, 512), nil, make([]int16, 512)},
	}
	got, err := runScript(t, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("silent run emitted %v", got)
	}
}
