package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"time"

	"deskmic/config"
	"deskmic/log"
	"deskmic/notify"
	"deskmic/shutdown"
)

const (
	watchdogInterval = 10 * time.Second
	gapCheckInterval = time.Minute
)

// runWatchdog polls the death flags. An unexpectedly dead loop means
// the process is no longer doing its one job, so the response is blunt:
// notify, re-exec a fresh copy of ourselves, and exit. If the re-exec
// fails the user is told once and the process keeps running degraded
// rather than dying silently.
func runWatchdog(h *health, notifier notify.Notifier, restart func() error, stop *atomic.Bool) {
	degraded := false
	for shutdown.Sleep(watchdogInterval, stop) {
		if !watchdogCheck(h, notifier, restart, &degraded) {
			continue
		}
		log.Close()
		os.Exit(0)
	}
}

// watchdogCheck runs one poll and reports whether a replacement process
// was launched and this one should exit.
func watchdogCheck(h *health, notifier notify.Notifier, restart func() error, degraded *bool) bool {
	name := deadLoop(h)
	if name == "" || *degraded {
		return false
	}
	log.WatchdogDeath(name)
	notifier.Notify("deskmic", "component stopped: "+name+", restarting recorder")
	if err := restart(); err != nil {
		log.Errorf("self restart failed: %v", err)
		notifier.Notify("deskmic", "restart failed, recording degraded; please restart manually")
		*degraded = true
		return false
	}
	return true
}

func deadLoop(h *health) string {
	switch {
	case h.micEnabled && h.micDead.Load():
		return "microphone loop"
	case h.monitorDead.Load():
		return "process monitor"
	case h.transcriberOn && h.transcriberDead.Load():
		return "transcriber"
	}
	return ""
}

func selfRestart() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	devnull, _ := os.Open(os.DevNull)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
	return cmd.Start()
}

// gapTracker latches one alert per silence gap. A gap alerts once when
// the age of the newest recording crosses the threshold and re-arms
// only after a newer recording appears.
type gapTracker struct {
	threshold time.Duration
	alerted   bool
}

func (g *gapTracker) observe(age time.Duration) bool {
	if age < g.threshold {
		g.alerted = false
		return false
	}
	if g.alerted {
		return false
	}
	g.alerted = true
	return true
}

// runGapTimer alerts when no recording has been written for the
// configured threshold. The age of the newest file counts directly, so
// a stale recording alerts on the first check; process start is the
// baseline only when no file exists yet.
func runGapTimer(cfg config.Config, notifier notify.Notifier, stop *atomic.Bool) {
	if cfg.Monitoring.GapAlertMins <= 0 {
		return
	}
	tracker := gapTracker{threshold: time.Duration(cfg.Monitoring.GapAlertMins) * time.Minute}
	baseline := time.Now()

	for shutdown.Sleep(gapCheckInterval, stop) {
		age := time.Since(lastActivity(cfg.Output.Directory, cfg.Output.OrganizeByDate, baseline, time.Now()))
		if tracker.observe(age) {
			log.GapAlert(age.Minutes(), cfg.Monitoring.GapAlertMins)
			notifier.Notify("deskmic", fmt.Sprintf("no recordings for %.0f minutes", age.Minutes()))
		}
	}
}

// lastActivity is the mod time of the newest recording, or the given
// baseline when none exists.
func lastActivity(baseDir string, organizeByDate bool, baseline, now time.Time) time.Time {
	if t, ok := newestWav(baseDir, organizeByDate, now); ok {
		return t
	}
	return baseline
}

// newestWav returns the mod time of the newest .wav in today's
// directory (or the base directory when recordings are not organized by
// date). Yesterday's files never suppress a gap alert.
func newestWav(baseDir string, organizeByDate bool, now time.Time) (time.Time, bool) {
	dir := baseDir
	if organizeByDate {
		dir = filepath.Join(baseDir, now.Format("2006-01-02"))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, false
	}
	var newest time.Time
	var found bool
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".wav" {
			continue
		}
		info, ierr := e.Info()
		if ierr != nil {
			continue
		}
		if !found || info.ModTime().After(newest) {
			newest = info.ModTime()
			found = true
		}
	}
	return newest, found
}
