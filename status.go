package main

import (
	"fmt"
	"os"
	"time"

	"deskmic/config"
	"deskmic/storage"
)

func printStatus(cfg config.Config) int {
	count, bytes, err := storage.Stats(cfg.Output.Directory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Recordings directory: %s\n", cfg.Output.Directory)
	fmt.Printf("Files: %d (%.1f MB)\n", count, float64(bytes)/(1<<20))
	if t, ok := newestWav(cfg.Output.Directory, cfg.Output.OrganizeByDate, time.Now()); ok {
		fmt.Printf("Newest recording: %s (%.0f minutes ago)\n", t.Format("2006-01-02 15:04:05"), time.Since(t).Minutes())
	} else {
		fmt.Println("No recordings today.")
	}
	return 0
}
