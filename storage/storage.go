// Package storage enforces the retention policy over the recordings
// directory. It only ever touches date-named directories, so stray
// files and finalized recordings inside the retention horizon are never
// candidates.
package storage

import (
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"deskmic/config"
	"deskmic/log"
	"deskmic/shutdown"
)

const dateLayout = "2006-01-02"

// CleanupOld deletes date directories older than retentionDays and
// returns the bytes freed.
func CleanupOld(dir string, retentionDays int, now time.Time) (uint64, error) {
	cutoff := now.AddDate(0, 0, -retentionDays).Format(dateLayout)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var freed uint64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if _, perr := time.Parse(dateLayout, name); perr != nil {
			continue
		}
		// Lexicographic compare works because the layout is
		// fixed-width year-month-day.
		if name < cutoff {
			path := filepath.Join(dir, name)
			size, _ := dirSize(path)
			if err := os.RemoveAll(path); err != nil {
				return freed, err
			}
			freed += size
			log.Infof("deleted old recordings: %s (%d bytes)", name, size)
		}
	}
	return freed, nil
}

// EnforceDiskLimit deletes the oldest date directories until total
// usage drops to maxBytes. Today's directory is never deleted: losing
// in-flight recordings is worse than briefly exceeding the limit.
func EnforceDiskLimit(dir string, maxBytes uint64, now time.Time) error {
	current, err := dirSize(dir)
	if err != nil || current <= maxBytes {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var dates []string
	today := now.Format(dateLayout)
	for _, e := range entries {
		if !e.IsDir() || e.Name() == today {
			continue
		}
		if _, perr := time.Parse(dateLayout, e.Name()); perr == nil {
			dates = append(dates, e.Name())
		}
	}
	sort.Strings(dates)

	remaining := current
	for _, name := range dates {
		if remaining <= maxBytes {
			break
		}
		path := filepath.Join(dir, name)
		size, _ := dirSize(path)
		if err := os.RemoveAll(path); err != nil {
			return err
		}
		remaining -= size
		log.Infof("deleted %s to free space (%d bytes)", name, size)
	}
	return nil
}

func dirSize(path string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // entry vanished mid-walk; skip
		}
		if d.Type().IsRegular() {
			if info, ierr := d.Info(); ierr == nil {
				total += uint64(info.Size())
			}
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	return total, err
}

// Stats returns the file count and total bytes across the recordings
// directory, one level of date directories deep.
func Stats(dir string) (int, uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	var count int
	var bytes uint64
	for _, e := range entries {
		if !e.IsDir() {
			if info, ierr := e.Info(); ierr == nil && info.Mode().IsRegular() {
				count++
				bytes += uint64(info.Size())
			}
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if info, ierr := f.Info(); ierr == nil && info.Mode().IsRegular() {
				count++
				bytes += uint64(info.Size())
			}
		}
	}
	return count, bytes, nil
}

// RunLoop runs cleanup once, then every cleanup interval until the stop
// flag is set. A non-positive interval disables cleanup entirely.
// Call on a dedicated goroutine.
func RunLoop(dir string, cfg config.Storage, stop *atomic.Bool) {
	if cfg.CleanupIntervalHours <= 0 {
		return
	}
	interval := time.Duration(cfg.CleanupIntervalHours) * time.Hour

	runOnce(dir, cfg)
	for shutdown.Sleep(interval, stop) {
		runOnce(dir, cfg)
	}
}

func runOnce(dir string, cfg config.Storage) {
	freed, err := CleanupOld(dir, cfg.RetentionDays, time.Now())
	if err != nil {
		log.Errorf("cleanup error: %v", err)
	}
	if freed > 0 {
		log.CleanupRun(freed)
	}
	if cfg.MaxDiskUsageGB > 0 {
		maxBytes := uint64(cfg.MaxDiskUsageGB * 1073741824)
		if err := EnforceDiskLimit(dir, maxBytes, time.Now()); err != nil {
			log.Errorf("disk limit enforcement error: %v", err)
		}
	}
}
