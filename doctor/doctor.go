// Package doctor runs non-interactive environment checks: capture
// devices, a short live capture, the voice classifier, and output
// directory writability.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gen2brain/malgo"

	"deskmic/audio"
	"deskmic/config"
	"deskmic/vad"
)

// Run executes all checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg config.Config) int {
	fmt.Println("deskmic doctor - environment diagnostics")
	fmt.Println("========================================")

	allPass := true
	if !checkDevices() {
		allPass = false
	}
	if !checkCapture(cfg) {
		allPass = false
	}
	if !checkClassifier(cfg) {
		allPass = false
	}
	if !checkOutputDir(cfg) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkDevices() bool {
	fmt.Println()
	fmt.Println("[1/4] Capture devices")

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		fmt.Printf("  FAIL: cannot init audio backend: %v\n", err)
		return false
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}
	for _, d := range devices {
		fmt.Printf("  - %s\n", d.Name())
	}
	fmt.Printf("  PASS: %d capture device(s)\n", len(devices))
	return true
}

func checkCapture(cfg config.Config) bool {
	fmt.Println()
	fmt.Println("[2/4] Microphone capture (2 seconds)")

	src := audio.NewMicSource(audio.Config{
		SampleRate: uint32(cfg.Capture.SampleRate),
		Channels:   uint32(cfg.Capture.Channels),
	})
	if err := src.Start(); err != nil {
		fmt.Printf("  FAIL: cannot start capture: %v\n", err)
		return false
	}
	defer src.Stop()

	var samples int
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		batch, err := src.ReadFrames()
		if err != nil {
			fmt.Printf("  FAIL: capture error: %v\n", err)
			return false
		}
		samples += len(batch)
	}
	if samples == 0 {
		fmt.Println("  FAIL: no audio data received")
		return false
	}
	fmt.Printf("  PASS: %d samples (%.1fs of audio)\n", samples, float64(samples)/float64(cfg.Capture.SampleRate))
	return true
}

func checkClassifier(cfg config.Config) bool {
	fmt.Println()
	fmt.Println("[3/4] Voice classifier")

	det, err := vad.NewWebRTC(cfg.Capture.SampleRate)
	if err != nil {
		fmt.Printf("  FAIL: classifier init: %v\n", err)
		return false
	}
	silence := make([]int16, vad.ChunkSize(cfg.Capture.SampleRate))
	p, err := det.Probability(silence)
	if err != nil {
		fmt.Printf("  FAIL: classifier error: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: silence scored %.2f\n", p)
	return true
}

func checkOutputDir(cfg config.Config) bool {
	fmt.Println()
	fmt.Println("[4/4] Output directory")

	dir := cfg.Output.Directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("  FAIL: cannot create %s: %v\n", dir, err)
		return false
	}
	probe := filepath.Join(dir, ".doctor_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		fmt.Printf("  FAIL: cannot write to %s: %v\n", dir, err)
		return false
	}
	os.Remove(probe)
	fmt.Printf("  PASS: %s is writable\n", dir)
	return true
}
