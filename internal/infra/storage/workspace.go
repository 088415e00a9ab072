// Package storage manages per-job workspace directories under the
// download root and reclaims them after their TTL.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// Manager owns the download root. Each job gets an isolated directory
// named by its ID; nothing outside the root is ever touched.
type Manager struct {
	root string
	ttl  time.Duration
}

func NewManager(root string, ttl time.Duration) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download root: %w", err)
	}
	return &Manager{root: root, ttl: ttl}, nil
}

func (m *Manager) Root() string { return m.root }

func (m *Manager) TTL() time.Duration { return m.ttl }

// JobDir creates and returns the workspace for a job.
func (m *Manager) JobDir(jobID string) (string, error) {
	dir := filepath.Join(m.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	return dir, nil
}

// Lookup returns the path of a stored file and whether it exists.
func (m *Manager) Lookup(jobID, filename string) (string, bool) {
	path := filepath.Join(m.root, jobID, filepath.Base(filename))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return path, false
	}
	return path, true
}

// Purge removes a job's workspace entirely.
func (m *Manager) Purge(jobID string) error {
	return os.RemoveAll(filepath.Join(m.root, jobID))
}

// TotalSize returns the combined size of all stored files in bytes.
func (m *Manager) TotalSize() int64 {
	var total int64
	_ = filepath.Walk(m.root, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// DiskUsagePercent reports how full the volume holding the root is.
func (m *Manager) DiskUsagePercent() (float64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(m.root, &st); err != nil {
		return 0, err
	}
	total := st.Blocks * uint64(st.Bsize)
	if total == 0 {
		return 0, nil
	}
	free := st.Bavail * uint64(st.Bsize)
	return float64(total-free) / float64(total) * 100, nil
}
