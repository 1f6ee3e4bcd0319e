package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"deskmic/audio"
	"deskmic/config"
	"deskmic/pipeline"
	"deskmic/writer"
)

// runTestMode pushes a WAV file through the full capture pipeline with
// no devices involved, writes whatever segments it finds, and exits.
// Used for end-to-end verification on machines without audio hardware.
func runTestMode(wavPath string, cfg config.Config) int {
	src, err := audio.NewFakeFromWAV(wavPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	seg, err := newSegmenter(sourceMic, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var stop atomic.Bool
	events := make(chan pipeline.Event, eventBuffer)
	writerEvents := make(chan pipeline.Event, eventBuffer)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writer.Run(writerEvents, cfg.Output)
	}()

	// Count segments on the way through to the writer.
	var segments int
	teeDone := make(chan struct{})
	go func() {
		defer close(teeDone)
		for ev := range events {
			if ev.Kind == pipeline.SpeechStart {
				segments++
			}
			writerEvents <- ev
		}
		close(writerEvents)
	}()

	pipeDone := make(chan struct{})
	var runErr error
	go func() {
		defer close(pipeDone)
		runErr = pipeline.Run(src, seg, events, &stop)
	}()

	<-src.Drained()
	// Let the last batches clear the runner before asking it to stop.
	time.Sleep(200 * time.Millisecond)
	stop.Store(true)
	<-pipeDone
	close(events)
	<-teeDone
	<-writerDone

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}
	fmt.Printf("Processed %s: %d speech segment(s) written to %s\n", wavPath, segments, cfg.Output.Directory)
	return 0
}
