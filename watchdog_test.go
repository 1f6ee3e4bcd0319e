package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deskmic/notify"
)

func TestGapTrackerAlertsOncePerGap(t *testing.T) {
	g := gapTracker{threshold: 30 * time.Minute}

	if g.observe(10 * time.Minute) {
		t.Fatal("alerted below threshold")
	}
	if !g.observe(31 * time.Minute) {
		t.Fatal("no alert at threshold crossing")
	}
	if g.observe(45 * time.Minute) {
		t.Fatal("second alert inside the same gap")
	}

	// A new recording re-arms the tracker.
	if g.observe(2 * time.Minute) {
		t.Fatal("alerted right after re-arm")
	}
	if !g.observe(40 * time.Minute) {
		t.Fatal("no alert for the next gap")
	}
}

func TestNewestWavPicksLatestToday(t *testing.T) {
	base := t.TempDir()
	day := filepath.Join(base, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(day, 0755); err != nil {
		t.Fatal(err)
	}

	old := filepath.Join(day, "mic_09-00-00.wav")
	recent := filepath.Join(day, "app_10-00-00.wav")
	for _, p := range []string{old, recent, filepath.Join(day, "notes.txt")} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	got, ok := newestWav(base, true, time.Now())
	if !ok {
		t.Fatal("no file found")
	}
	info, err := os.Stat(recent)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(info.ModTime()) {
		t.Fatalf("newest = %v, want mod time of %s", got, recent)
	}
}

func TestNewestWavMissingDayDir(t *testing.T) {
	if _, ok := newestWav(t.TempDir(), true, time.Now()); ok {
		t.Fatal("found a recording in an empty directory")
	}
}

func TestNewestWavFlatLayout(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "mic_12-00-00.wav"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := newestWav(base, false, time.Now()); !ok {
		t.Fatal("flat-layout recording not found")
	}
}

func TestWatchdogExitsOnSuccessfulRestart(t *testing.T) {
	h := &health{micEnabled: true}
	h.micDead.Store(true)
	var msgs []string
	n := notify.Func(func(_, body string) { msgs = append(msgs, body) })

	degraded := false
	if !watchdogCheck(h, n, func() error { return nil }, &degraded) {
		t.Fatal("successful restart did not request exit")
	}
	if degraded {
		t.Fatal("successful restart marked process degraded")
	}
	if len(msgs) != 1 || !strings.Contains(msgs[0], "restarting") {
		t.Fatalf("notifications = %v, want single restart notice", msgs)
	}
}

func TestWatchdogNotifiesOnceWhenRestartFails(t *testing.T) {
	h := &health{micEnabled: true}
	h.micDead.Store(true)
	var msgs []string
	n := notify.Func(func(_, body string) { msgs = append(msgs, body) })
	restart := func() error { return errors.New("exec format error") }

	degraded := false
	if watchdogCheck(h, n, restart, &degraded) {
		t.Fatal("failed restart requested exit")
	}
	if !degraded {
		t.Fatal("failed restart did not mark process degraded")
	}
	if len(msgs) != 2 || !strings.Contains(msgs[1], "restart failed") {
		t.Fatalf("notifications = %v, want death notice then restart failure", msgs)
	}

	// Degraded: the still-set death flag must not re-alert or re-exec.
	if watchdogCheck(h, n, restart, &degraded) {
		t.Fatal("degraded watchdog requested exit")
	}
	if len(msgs) != 2 {
		t.Fatalf("degraded watchdog kept notifying: %v", msgs)
	}
}

func TestWatchdogHealthyProcessIsQuiet(t *testing.T) {
	h := &health{micEnabled: true}
	degraded := false
	n := notify.Func(func(_, body string) { t.Fatalf("unexpected notification: %s", body) })
	if watchdogCheck(h, n, func() error { return nil }, &degraded) {
		t.Fatal("healthy process requested exit")
	}
}

func TestLastActivityPrefersStaleFileOverBaseline(t *testing.T) {
	base := t.TempDir()
	day := filepath.Join(base, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(day, 0755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(day, "mic_08-00-00.wav")
	if err := os.WriteFile(stale, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatal(err)
	}

	// A just-started process must still see the two-hour-old recording
	// as the last activity, not its own start time.
	got := lastActivity(base, true, time.Now(), time.Now())
	if time.Since(got) < time.Hour {
		t.Fatalf("lastActivity = %v, want the stale file's mod time", got)
	}
}

func TestLastActivityFallsBackToBaseline(t *testing.T) {
	baseline := time.Now().Add(-5 * time.Minute)
	got := lastActivity(t.TempDir(), true, baseline, time.Now())
	if !got.Equal(baseline) {
		t.Fatalf("lastActivity = %v, want baseline %v", got, baseline)
	}
}

func TestDeadLoopReportsFlaggedLoops(t *testing.T) {
	h := &health{micEnabled: true, transcriberOn: true}
	if got := deadLoop(h); got != "" {
		t.Fatalf("healthy process reported %q", got)
	}

	h.transcriberDead.Store(true)
	if got := deadLoop(h); got != "transcriber" {
		t.Fatalf("got %q, want transcriber", got)
	}

	h.micDead.Store(true)
	if got := deadLoop(h); got != "microphone loop" {
		t.Fatalf("got %q, want microphone loop", got)
	}
}

func TestDeadLoopIgnoresDisabledComponents(t *testing.T) {
	h := &health{}
	h.micDead.Store(true)
	h.transcriberDead.Store(true)
	if got := deadLoop(h); got != "" {
		t.Fatalf("disabled components reported %q", got)
	}
}
