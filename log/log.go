// Package log writes the diagnostics log. It wraps zerolog with the
// small set of events the recorder emits, so call sites stay terse and
// the log file stays greppable.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: DESKMIC_LOG_PATH environment variable
	envPath := os.Getenv("DESKMIC_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	f, err := os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	diagFile = f

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// --- recorder events ---

func SessionStart(sampleRate int, micEnabled bool, targets []string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("sample_rate", sampleRate).
		Bool("mic", micEnabled).
		Strs("targets", targets).
		Msg("session_start")
}

func SegmentOpened(source, path string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("source", source).Str("path", path).Msg("segment_opened")
}

func SegmentClosed(source, path string, samples int, reason string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("source", source).
		Str("path", path).
		Int("samples", samples).
		Str("reason", reason).
		Msg("segment_closed")
}

func PipelineRestart(source string, attempt int, backoffSecs float64, cause error) {
	if !logReady {
		return
	}
	ev := diagLog.Warn().
		Str("source", source).
		Int("attempt", attempt).
		Float64("backoff_s", backoffSecs)
	if cause != nil {
		ev = ev.Str("cause", cause.Error())
	}
	ev.Msg("pipeline_restart")
}

func ProcessLocked(pid int, name string) {
	if !logReady {
		return
	}
	diagLog.Info().Int("target_pid", pid).Str("name", name).Msg("process_locked")
}

func ProcessReleased(pid int) {
	if !logReady {
		return
	}
	diagLog.Info().Int("target_pid", pid).Msg("process_released")
}

func WatchdogDeath(name string) {
	if !logReady {
		return
	}
	diagLog.Error().Str("thread", name).Msg("watchdog_thread_dead")
}

func GapAlert(ageMins float64, thresholdMins int) {
	if !logReady {
		return
	}
	diagLog.Warn().
		Float64("age_mins", ageMins).
		Int("threshold_mins", thresholdMins).
		Msg("recording_gap")
}

func CleanupRun(bytesFreed uint64) {
	if !logReady {
		return
	}
	diagLog.Info().Uint64("bytes_freed", bytesFreed).Msg("cleanup_run")
}
