package main

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"deskmic/audio"
	"deskmic/config"
	"deskmic/log"
	"deskmic/notify"
	"deskmic/pipeline"
	"deskmic/procmon"
	"deskmic/shutdown"
	"deskmic/storage"
	"deskmic/vad"
	"deskmic/writer"
)

// Source labels. Filenames and per-source writer state are keyed on
// these, so they must stay stable across versions.
const (
	sourceMic = "mic"
	sourceApp = "app"
)

const eventBuffer = 256

const (
	backoffInitial = 2 * time.Second
	backoffMax     = 30 * time.Second
	// A run at least this long counts as recovered and resets backoff.
	sustainedRun = time.Minute
)

// health carries per-loop death flags for the watchdog. Each flag is
// set by its own goroutine only; an unexpected exit (including a
// recovered panic) flips it, and the watchdog reacts.
type health struct {
	micDead         atomic.Bool
	monitorDead     atomic.Bool
	transcriberDead atomic.Bool
	micEnabled      bool
	transcriberOn   bool
}

func runRecorder(cfg config.Config) {
	log.SessionStart(cfg.Capture.SampleRate, cfg.Targets.MicEnabled, cfg.Targets.Processes)

	var stop atomic.Bool
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		stop.Store(true)
	}()

	events := make(chan pipeline.Event, eventBuffer)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writer.Run(events, cfg.Output)
	}()

	audioCfg := audio.Config{
		SampleRate: uint32(cfg.Capture.SampleRate),
		Channels:   uint32(cfg.Capture.Channels),
	}
	h := &health{
		micEnabled:    cfg.Targets.MicEnabled,
		transcriberOn: len(cfg.Transcription.Command) > 0,
	}

	// Producers. The event channel closes only after all of them have
	// returned; the writer finalizes any open files on closure.
	var producers sync.WaitGroup

	if cfg.Targets.MicEnabled {
		producers.Add(1)
		go func() {
			defer producers.Done()
			defer markDead(&h.micDead, &stop, "microphone loop")
			runMicLoop(cfg, audioCfg, events, &stop)
		}()
	}

	mon := procmon.New(cfg.Targets.Processes, func(pid int, pipeStop *atomic.Bool) <-chan struct{} {
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer logPanic("loopback pipeline")
			runLoopbackPipeline(pid, cfg, audioCfg, events, pipeStop)
		}()
		return done
	})
	producers.Add(1)
	go func() {
		defer producers.Done()
		defer markDead(&h.monitorDead, &stop, "process monitor")
		mon.Run(&stop)
	}()

	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		defer logPanic("storage cleanup")
		storage.RunLoop(cfg.Output.Directory, cfg.Storage, &stop)
	}()

	child := spawnTranscriber(cfg, h)

	notifier := notify.Toast{}
	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		runWatchdog(h, notifier, selfRestart, &stop)
	}()
	gapDone := make(chan struct{})
	go func() {
		defer close(gapDone)
		runGapTimer(cfg, notifier, &stop)
	}()

	// Join order matters: producers first, then close the channel so
	// the writer can finalize, then the rest.
	producers.Wait()
	close(events)
	<-writerDone
	<-cleanupDone
	<-watchdogDone
	<-gapDone
	stopTranscriber(child)
	log.Info("recorder stopped")
}

// markDead flips the loop's death flag when it exits without the
// shutdown flag set. A panic is recovered here so that one dead loop
// degrades the process instead of killing it outright; the watchdog
// decides what to do next.
func markDead(flag *atomic.Bool, stop *atomic.Bool, name string) {
	if r := recover(); r != nil {
		log.Errorf("%s panicked: %v", name, r)
	}
	if !stop.Load() {
		flag.Store(true)
	}
}

func logPanic(name string) {
	if r := recover(); r != nil {
		log.Errorf("%s panicked: %v", name, r)
	}
}

func newSegmenter(source string, cfg config.Config) (*pipeline.Segmenter, error) {
	det, err := vad.NewWebRTC(cfg.Capture.SampleRate)
	if err != nil {
		return nil, err
	}
	return pipeline.NewSegmenter(source, det, pipeline.SegmenterConfig{
		SampleRate:          cfg.Capture.SampleRate,
		PreSpeechBufferSec:  cfg.VAD.PreSpeechBufferSecs,
		SilenceThresholdSec: cfg.VAD.SilenceThresholdSecs,
		SpeechThreshold:     cfg.VAD.SpeechThreshold,
	}), nil
}

// runMicLoop supervises the microphone pipeline. Every return from the
// pipeline, clean or not, is followed by a fresh source and another
// attempt: the microphone is supposed to record for as long as the
// process lives. Backoff grows per consecutive failure and resets once
// a run survives long enough.
func runMicLoop(cfg config.Config, audioCfg audio.Config, events chan<- pipeline.Event, stop *atomic.Bool) {
	backoff := backoffInitial
	attempt := 0

	for !stop.Load() {
		seg, err := newSegmenter(sourceMic, cfg)
		if err != nil {
			log.Errorf("microphone classifier init: %v", err)
			return
		}
		src := audio.NewMicSource(audioCfg)

		started := time.Now()
		runErr := pipeline.Run(src, seg, events, stop)
		if stop.Load() {
			return
		}

		if time.Since(started) >= sustainedRun {
			backoff = backoffInitial
			attempt = 0
		}
		attempt++
		log.PipelineRestart(sourceMic, attempt, backoff.Seconds(), runErr)
		if !shutdown.Sleep(backoff, stop) {
			return
		}
		if backoff *= 2; backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

// runLoopbackPipeline runs one capture pipeline for the locked target
// pid. No retry here: a return releases the process lock and the
// monitor re-locks on its next poll if the target is still alive.
func runLoopbackPipeline(pid int, cfg config.Config, audioCfg audio.Config, events chan<- pipeline.Event, stop *atomic.Bool) {
	seg, err := newSegmenter(sourceApp, cfg)
	if err != nil {
		log.Errorf("loopback classifier init: %v", err)
		return
	}
	src := audio.NewLoopbackSource(pid, audioCfg)
	if err := pipeline.Run(src, seg, events, stop); err != nil {
		log.Errorf("loopback pipeline (pid %d): %v", pid, err)
	}
}
