package main

import (
	"os/exec"
	"slices"

	"deskmic/config"
	"deskmic/log"
)

// spawnTranscriber starts the external transcription consumer with the
// output directory appended to its argv. The recorder only tracks its
// liveness; everything else about it is the consumer's business.
func spawnTranscriber(cfg config.Config, h *health) *exec.Cmd {
	argv := cfg.Transcription.Command
	if len(argv) == 0 {
		return nil
	}
	args := append(slices.Clone(argv[1:]), cfg.Output.Directory)
	cmd := exec.Command(argv[0], args...)
	if err := cmd.Start(); err != nil {
		log.Errorf("transcriber start failed: %v", err)
		h.transcriberDead.Store(true)
		return nil
	}
	log.Infof("transcriber started: %s (pid %d)", argv[0], cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		if err != nil {
			log.Errorf("transcriber exited: %v", err)
		} else {
			log.Warn("transcriber exited")
		}
		h.transcriberDead.Store(true)
	}()
	return cmd
}

func stopTranscriber(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Kill(); err == nil {
		log.Info("transcriber stopped")
	}
}
