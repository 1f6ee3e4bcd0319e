package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Capture.SampleRate != 16000 {
		t.Fatalf("default sample rate = %d", cfg.Capture.SampleRate)
	}
	if cfg.VAD.SilenceThresholdSecs != 3.0 {
		t.Fatalf("default silence threshold = %g", cfg.VAD.SilenceThresholdSecs)
	}
	if !cfg.Targets.MicEnabled {
		t.Fatal("mic disabled by default")
	}
}

func TestPartialFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deskmic.toml")
	body := `
[capture]
sample_rate = 8000

[vad]
speech_threshold = 0.2

[targets]
processes = ["zoom.exe", "slack.exe"]
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Capture.SampleRate != 8000 {
		t.Fatalf("sample rate not overridden: %d", cfg.Capture.SampleRate)
	}
	if cfg.VAD.SpeechThreshold != 0.2 {
		t.Fatalf("speech threshold not overridden: %g", cfg.VAD.SpeechThreshold)
	}
	if len(cfg.Targets.Processes) != 2 || cfg.Targets.Processes[0] != "zoom.exe" {
		t.Fatalf("targets not overridden: %v", cfg.Targets.Processes)
	}
	// Untouched sections keep their defaults.
	if cfg.Storage.RetentionDays != 30 {
		t.Fatalf("retention default lost: %d", cfg.Storage.RetentionDays)
	}
	if cfg.Output.MaxFileDurationMins != 30 {
		t.Fatalf("rotation default lost: %d", cfg.Output.MaxFileDurationMins)
	}
}

func TestExplicitMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sample rate", func(c *Config) { c.Capture.SampleRate = 44100 }},
		{"bit depth", func(c *Config) { c.Capture.BitDepth = 24 }},
		{"channels", func(c *Config) { c.Capture.Channels = 2 }},
		{"threshold above one", func(c *Config) { c.VAD.SpeechThreshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.VAD.SpeechThreshold = -0.1 }},
		{"zero silence", func(c *Config) { c.VAD.SilenceThresholdSecs = 0 }},
		{"negative pre-roll", func(c *Config) { c.VAD.PreSpeechBufferSecs = -1 }},
		{"zero rotation", func(c *Config) { c.Output.MaxFileDurationMins = 0 }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: invalid config accepted", tc.name)
		}
	}
}

func TestInvalidTOMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deskmic.toml")
	if err := os.WriteFile(path, []byte("not [ valid = toml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
