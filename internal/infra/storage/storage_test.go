package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), ttl)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestJobDirAndLookup(t *testing.T) {
	m := newTestManager(t, time.Minute)

	dir, err := m.JobDir("job-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Lookup("job-1", "video.mp4"); ok {
		t.Error("Lookup found a file that was never written")
	}

	if err := os.WriteFile(filepath.Join(dir, "video.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, ok := m.Lookup("job-1", "video.mp4")
	if !ok {
		t.Fatal("Lookup missed an existing file")
	}
	if path != filepath.Join(dir, "video.mp4") {
		t.Errorf("Lookup path = %q", path)
	}
}

func TestLookupRejectsTraversal(t *testing.T) {
	m := newTestManager(t, time.Minute)
	if _, err := m.JobDir("job-1"); err != nil {
		t.Fatal(err)
	}

	outside := filepath.Join(m.Root(), "secret.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Lookup("job-1", "../secret.txt"); ok {
		t.Error("Lookup escaped the job workspace")
	}
}

func TestPurge(t *testing.T) {
	m := newTestManager(t, time.Minute)
	dir, err := m.JobDir("job-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "video.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := m.Purge("job-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("workspace still present after Purge")
	}
}

func TestTotalSize(t *testing.T) {
	m := newTestManager(t, time.Minute)
	for i, job := range []string{"a", "b"} {
		dir, err := m.JobDir(job)
		if err != nil {
			t.Fatal(err)
		}
		content := make([]byte, (i+1)*100)
		if err := os.WriteFile(filepath.Join(dir, "video.mp4"), content, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got := m.TotalSize(); got != 300 {
		t.Errorf("TotalSize = %d, want 300", got)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	m := newTestManager(t, time.Hour)
	s := NewSweeper(m, time.Minute, nil)

	oldDir, err := m.JobDir("old-job")
	if err != nil {
		t.Fatal(err)
	}
	oldFile := filepath.Join(oldDir, "video.mp4")
	if err := os.WriteFile(oldFile, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(oldDir, past, past); err != nil {
		t.Fatal(err)
	}

	freshDir, err := m.JobDir("fresh-job")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(freshDir, "video.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if n := s.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("expired workspace survived the sweep")
	}
	if _, err := os.Stat(freshDir); err != nil {
		t.Error("fresh workspace was swept")
	}
}

func TestSweepKeepsRecentlyTouched(t *testing.T) {
	m := newTestManager(t, time.Hour)
	s := NewSweeper(m, time.Minute, nil)

	dir, err := m.JobDir("job-1")
	if err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(dir, past, past); err != nil {
		t.Fatal(err)
	}
	// A fresh file inside resets the workspace's age
	if err := os.WriteFile(filepath.Join(dir, "video.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if n := s.Sweep(); n != 0 {
		t.Errorf("Sweep removed %d, want 0", n)
	}
}
