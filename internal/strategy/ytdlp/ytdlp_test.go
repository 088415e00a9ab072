package ytdlp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vidfetch/vidfetch/internal/core/domain"
	"github.com/vidfetch/vidfetch/internal/strategy"
)

func TestBaseArgs(t *testing.T) {
	a := New(Options{CookiesFile: "/tmp/jar.txt", POToken: "tok", VisitorData: "vd"})

	args := a.baseArgs(strategy.Params{
		"player_client": "ios",
		"skip_webpage":  "1",
		"cookies":       "1",
		"proxy":         "http://u:p@1.2.3.4:80",
	})
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "youtube:player_client=ios;player_skip=webpage;po_token=web+tok;visitor_data=vd") {
		t.Errorf("extractor args wrong: %s", joined)
	}
	if !strings.Contains(joined, "--cookies /tmp/jar.txt") {
		t.Errorf("cookie jar missing: %s", joined)
	}
	if !strings.Contains(joined, "--proxy http://u:p@1.2.3.4:80") {
		t.Errorf("proxy missing: %s", joined)
	}
}

func TestBaseArgsMinimal(t *testing.T) {
	a := New(Options{})

	args := a.baseArgs(strategy.Params{"player_client": "android"})
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "youtube:player_client=android") {
		t.Errorf("extractor args wrong: %s", joined)
	}
	if strings.Contains(joined, "--cookies") || strings.Contains(joined, "--proxy") {
		t.Errorf("unconfigured flags present: %s", joined)
	}
	if strings.Contains(joined, "po_token") {
		t.Errorf("po_token present without credentials: %s", joined)
	}
}

func TestParseInfoJSON(t *testing.T) {
	out := []byte(`[download] Destination: video.mp4
{"title":"Test Clip","duration":212.5,"width":1280,"height":720,"filesize":1048576,"ext":"mp4","id":"dQw4w9WgXcQ","channel":"TestChannel","view_count":42}`)

	meta := parseInfoJSON(out)
	if meta.Title != "Test Clip" || meta.DurationSeconds != 212.5 {
		t.Errorf("meta = %+v", meta)
	}
	if meta.Height != 720 || meta.SizeBytes != 1048576 || meta.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestParseInfoJSONFallbacks(t *testing.T) {
	meta := parseInfoJSON([]byte(`{"filesize_approx":2048,"uploader":"someone"}`))
	if meta.Title != "Unknown" {
		t.Errorf("Title = %q, want Unknown", meta.Title)
	}
	if meta.SizeBytes != 2048 {
		t.Errorf("SizeBytes = %d, want filesize_approx fallback", meta.SizeBytes)
	}
	if meta.ChannelName != "someone" {
		t.Errorf("ChannelName = %q, want uploader fallback", meta.ChannelName)
	}
}

func TestParseInfoJSONGarbage(t *testing.T) {
	meta := parseInfoJSON([]byte("not json at all"))
	if meta.Title != "Unknown" || meta.Format != "mp4" {
		t.Errorf("meta = %+v, want minimal fallback", meta)
	}
}

func TestLocateOutputFallback(t *testing.T) {
	job := domain.DownloadJob{Workspace: t.TempDir(), Format: "mp4"}

	// Requested mp4 never materialized; the merge saved mkv instead
	mkv := filepath.Join(job.Workspace, "video.mkv")
	if err := os.WriteFile(mkv, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	small := filepath.Join(job.Workspace, "video.part")
	if err := os.WriteFile(small, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := locateOutput(job)
	if err != nil {
		t.Fatal(err)
	}
	if got != mkv {
		t.Errorf("locateOutput = %q, want largest candidate %q", got, mkv)
	}
}

func TestLocateOutputMissing(t *testing.T) {
	job := domain.DownloadJob{Workspace: t.TempDir(), Format: "mp4"}
	if _, err := locateOutput(job); err == nil {
		t.Error("locateOutput found a file in an empty workspace")
	}
}
