package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"deskmic/config"
	"deskmic/doctor"
	"deskmic/log"
)

var version = "dev"

func main() {
	configFlag := flag.String("config", "", "Path to config file (default: search standard locations)")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	statusFlag := flag.Bool("status", false, "Print recording statistics and exit")
	doctorFlag := flag.Bool("doctor", false, "Run environment diagnostics and exit")
	testFlag := flag.Bool("test", false, "Test mode: process a WAV file headlessly and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("deskmic %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *statusFlag {
		os.Exit(printStatus(cfg))
	}
	if *doctorFlag {
		os.Exit(doctor.Run(cfg))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: deskmic -test <wav-file>")
			os.Exit(1)
		}
		os.Exit(runTestMode(args[0], cfg))
	}

	runRecorder(cfg)
}

// initCrashLog routes fatal runtime panics to a file beside the
// diagnostics log. The process is long-lived and unattended, so stderr
// is usually connected to nothing.
func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}
