// Package config loads the recorder configuration. Settings are read
// once at startup and treated as immutable for the life of the process.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Capture       Capture       `toml:"capture"`
	VAD           VAD           `toml:"vad"`
	Output        Output        `toml:"output"`
	Targets       Targets       `toml:"targets"`
	Storage       Storage       `toml:"storage"`
	Monitoring    Monitoring    `toml:"monitoring"`
	Transcription Transcription `toml:"transcription"`
}

type Capture struct {
	SampleRate int `toml:"sample_rate"`
	BitDepth   int `toml:"bit_depth"`
	Channels   int `toml:"channels"`
}

type VAD struct {
	PreSpeechBufferSecs  float64 `toml:"pre_speech_buffer_secs"`
	SilenceThresholdSecs float64 `toml:"silence_threshold_secs"`
	SpeechThreshold      float64 `toml:"speech_threshold"`
}

type Output struct {
	Directory           string `toml:"directory"`
	MaxFileDurationMins int    `toml:"max_file_duration_mins"`
	OrganizeByDate      bool   `toml:"organize_by_date"`
}

type Targets struct {
	// Candidate executable names for the target application. Several
	// names cover renamed/preview builds; the first live match wins.
	Processes  []string `toml:"processes"`
	MicEnabled bool     `toml:"mic_enabled"`
}

type Storage struct {
	RetentionDays        int     `toml:"retention_days"`
	CleanupIntervalHours int     `toml:"cleanup_interval_hours"` // 0 = disabled
	MaxDiskUsageGB       float64 `toml:"max_disk_usage_gb"` // 0 = unlimited
}

type Monitoring struct {
	GapAlertMins int `toml:"gap_alert_mins"` // 0 = disabled
}

type Transcription struct {
	// Command (argv) for the externally spawned transcription consumer.
	// The recorder appends the output directory and only watches the
	// child's liveness; empty disables it.
	Command []string `toml:"command"`
}

func Default() Config {
	return Config{
		Capture: Capture{
			SampleRate: 16000,
			BitDepth:   16,
			Channels:   1,
		},
		VAD: VAD{
			PreSpeechBufferSecs:  5.0,
			SilenceThresholdSecs: 3.0,
			SpeechThreshold:      0.5,
		},
		Output: Output{
			Directory:           defaultOutputDir(),
			MaxFileDurationMins: 30,
			OrganizeByDate:      true,
		},
		Targets: Targets{
			Processes:  []string{"ms-teams.exe"},
			MicEnabled: true,
		},
		Storage: Storage{
			RetentionDays:        30,
			CleanupIntervalHours: 6,
		},
		Monitoring: Monitoring{
			GapAlertMins: 30,
		},
	}
}

func defaultOutputDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "deskmic", "recordings")
}

// Load reads the config from an explicit path, or searches the standard
// locations (beside the executable, then the user config dir), or falls
// back to defaults. File values overlay the defaults, so a partial file
// is fine.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
		return cfg, cfg.Validate()
	}

	if exe, err := os.Executable(); err == nil {
		besideExe := filepath.Join(filepath.Dir(exe), "deskmic.toml")
		if _, err := os.Stat(besideExe); err == nil {
			if _, err := toml.DecodeFile(besideExe, &cfg); err != nil {
				return cfg, fmt.Errorf("config %s: %w", besideExe, err)
			}
			return cfg, cfg.Validate()
		}
	}

	if confDir, err := os.UserConfigDir(); err == nil {
		platformConfig := filepath.Join(confDir, "deskmic", "config.toml")
		if _, err := os.Stat(platformConfig); err == nil {
			if _, err := toml.DecodeFile(platformConfig, &cfg); err != nil {
				return cfg, fmt.Errorf("config %s: %w", platformConfig, err)
			}
			return cfg, cfg.Validate()
		}
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Capture.SampleRate != 8000 && c.Capture.SampleRate != 16000 {
		return fmt.Errorf("capture.sample_rate must be 8000 or 16000, got %d", c.Capture.SampleRate)
	}
	if c.Capture.BitDepth != 16 {
		return fmt.Errorf("capture.bit_depth must be 16, got %d", c.Capture.BitDepth)
	}
	if c.Capture.Channels != 1 {
		return fmt.Errorf("capture.channels must be 1, got %d", c.Capture.Channels)
	}
	if c.VAD.SpeechThreshold < 0 || c.VAD.SpeechThreshold > 1 {
		return fmt.Errorf("vad.speech_threshold must be in [0, 1], got %g", c.VAD.SpeechThreshold)
	}
	if c.VAD.PreSpeechBufferSecs < 0 {
		return fmt.Errorf("vad.pre_speech_buffer_secs must not be negative")
	}
	if c.VAD.SilenceThresholdSecs <= 0 {
		return fmt.Errorf("vad.silence_threshold_secs must be positive")
	}
	if c.Output.MaxFileDurationMins <= 0 {
		return fmt.Errorf("output.max_file_duration_mins must be positive")
	}
	return nil
}
