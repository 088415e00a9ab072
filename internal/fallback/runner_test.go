package fallback

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vidfetch/vidfetch/internal/core/domain"
	"github.com/vidfetch/vidfetch/internal/strategy"
)

type funcAdapter struct {
	kind string
	fn   func(ctx context.Context, job domain.DownloadJob, params strategy.Params) domain.ExecutionResult
}

func (a funcAdapter) Kind() string { return a.kind }

func (a funcAdapter) Fetch(ctx context.Context, job domain.DownloadJob, params strategy.Params) domain.ExecutionResult {
	return a.fn(ctx, job, params)
}

func testJob(t *testing.T) domain.DownloadJob {
	t.Helper()
	return domain.DownloadJob{
		ID:        "job-1",
		SourceURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Quality:   domain.Quality720,
		Format:    "mp4",
		Workspace: t.TempDir(),
	}
}

func writeOutput(t *testing.T, job domain.DownloadJob, content string) string {
	t.Helper()
	path := job.OutputPath()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunnerSuccessStampsSize(t *testing.T) {
	job := testJob(t)
	d := strategy.Descriptor{
		Name: "fake", Kind: "fake", Timeout: time.Minute,
		Adapter: funcAdapter{kind: "fake", fn: func(ctx context.Context, job domain.DownloadJob, _ strategy.Params) domain.ExecutionResult {
			path := writeOutput(t, job, "0123456789")
			return domain.Succeed(path, domain.VideoMetadata{Title: "ok", SizeBytes: 12345})
		}},
	}

	res := NewRunner(nil).Execute(context.Background(), d, job)
	if !res.OK {
		t.Fatalf("Execute failed: %s", res.Err)
	}
	if res.Metadata.SizeBytes != 10 {
		t.Errorf("SizeBytes = %d, want 10 (stamped from disk)", res.Metadata.SizeBytes)
	}
}

func TestRunnerRejectsEmptyFile(t *testing.T) {
	job := testJob(t)
	d := strategy.Descriptor{
		Name: "fake", Kind: "fake", Timeout: time.Minute,
		Adapter: funcAdapter{kind: "fake", fn: func(ctx context.Context, job domain.DownloadJob, _ strategy.Params) domain.ExecutionResult {
			return domain.Succeed(writeOutput(t, job, ""), domain.VideoMetadata{})
		}},
	}

	res := NewRunner(nil).Execute(context.Background(), d, job)
	if res.OK {
		t.Fatal("empty output accepted as success")
	}
	if !strings.Contains(res.Err, "empty") {
		t.Errorf("Err = %q, want empty-file message", res.Err)
	}
}

func TestRunnerRejectsMissingFile(t *testing.T) {
	job := testJob(t)
	d := strategy.Descriptor{
		Name: "fake", Kind: "fake", Timeout: time.Minute,
		Adapter: funcAdapter{kind: "fake", fn: func(ctx context.Context, job domain.DownloadJob, _ strategy.Params) domain.ExecutionResult {
			return domain.Succeed(job.OutputPath(), domain.VideoMetadata{})
		}},
	}

	res := NewRunner(nil).Execute(context.Background(), d, job)
	if res.OK {
		t.Fatal("phantom output accepted as success")
	}
}

func TestRunnerPanicIsolation(t *testing.T) {
	job := testJob(t)
	d := strategy.Descriptor{
		Name: "fake", Kind: "fake", Timeout: time.Minute,
		Adapter: funcAdapter{kind: "fake", fn: func(ctx context.Context, job domain.DownloadJob, _ strategy.Params) domain.ExecutionResult {
			panic("index out of range")
		}},
	}

	res := NewRunner(nil).Execute(context.Background(), d, job)
	if res.OK {
		t.Fatal("panicking adapter reported success")
	}
	if !strings.Contains(res.Err, "panic") {
		t.Errorf("Err = %q, want panic message", res.Err)
	}
}

func TestRunnerAttemptTimeout(t *testing.T) {
	job := testJob(t)
	d := strategy.Descriptor{
		Name: "fake", Kind: "ytdlp", Timeout: 20 * time.Millisecond,
		Adapter: funcAdapter{kind: "ytdlp", fn: func(ctx context.Context, job domain.DownloadJob, _ strategy.Params) domain.ExecutionResult {
			<-ctx.Done()
			time.Sleep(time.Second)
			return domain.Fail("never seen")
		}},
	}

	res := NewRunner(nil).Execute(context.Background(), d, job)
	if res.OK {
		t.Fatal("timed-out attempt reported success")
	}
	if !strings.Contains(res.Err, "ytdlp strategy timed out") {
		t.Errorf("Err = %q, want family timeout message", res.Err)
	}
}

func TestRunnerOverallDeadline(t *testing.T) {
	job := testJob(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	d := strategy.Descriptor{
		Name: "fake", Kind: "ytdlp", Timeout: time.Minute,
		Adapter: funcAdapter{kind: "ytdlp", fn: func(ctx context.Context, job domain.DownloadJob, _ strategy.Params) domain.ExecutionResult {
			<-ctx.Done()
			time.Sleep(time.Second)
			return domain.Fail("never seen")
		}},
	}

	res := NewRunner(nil).Execute(ctx, d, job)
	if res.OK {
		t.Fatal("deadline-cut attempt reported success")
	}
	if res.Err != "download timed out: overall deadline exceeded" {
		t.Errorf("Err = %q, want overall deadline message", res.Err)
	}
}

func TestRunnerCleansResidue(t *testing.T) {
	job := testJob(t)
	stale := filepath.Join(job.Workspace, domain.OutputStem+".part")
	if err := os.WriteFile(stale, []byte("leftover"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := strategy.Descriptor{
		Name: "fake", Kind: "fake", Timeout: time.Minute,
		Adapter: funcAdapter{kind: "fake", fn: func(ctx context.Context, job domain.DownloadJob, _ strategy.Params) domain.ExecutionResult {
			if _, err := os.Stat(stale); !os.IsNotExist(err) {
				t.Error("stale output still present at attempt start")
			}
			return domain.Fail("irrelevant")
		}},
	}

	NewRunner(nil).Execute(context.Background(), d, job)
}
