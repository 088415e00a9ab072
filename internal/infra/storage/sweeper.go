package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Sweeper deletes expired job workspaces on an interval.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(manager *Manager, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{manager: manager, interval: interval, log: log}
}

// Run blocks until ctx is canceled, sweeping every interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Info("cleaned up expired downloads", "removed", n)
			}
		}
	}
}

// Sweep removes workspaces whose newest file is older than the TTL and
// returns how many were removed. Empty directories expire by their own
// modification time.
func (s *Sweeper) Sweep() int {
	entries, err := os.ReadDir(s.manager.Root())
	if err != nil {
		return 0
	}

	cutoff := time.Now().Add(-s.manager.TTL())
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.manager.Root(), e.Name())
		if newestModTime(dir).After(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			s.log.Warn("failed to remove expired workspace", "dir", dir, "error", err)
			continue
		}
		removed++
	}
	return removed
}

func newestModTime(dir string) time.Time {
	info, err := os.Stat(dir)
	if err != nil {
		return time.Time{}
	}
	newest := info.ModTime()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return newest
	}
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if fi.ModTime().After(newest) {
			newest = fi.ModTime()
		}
	}
	return newest
}
