package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vidfetch/vidfetch/internal/core/domain"
	"github.com/vidfetch/vidfetch/internal/strategy"
)

// Runner executes one descriptor against one job: workspace cleanup
// before the attempt, a hard wall-clock deadline around it, panic
// isolation, and output validation after it. No adapter error, panic,
// or bogus success claim crosses this boundary.
type Runner struct {
	log *slog.Logger
}

func NewRunner(log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{log: log}
}

// Execute runs the attempt. ctx carries the job's overall deadline; the
// descriptor's family ceiling is layered on top, so the effective
// deadline is whichever expires first.
func (r *Runner) Execute(ctx context.Context, d strategy.Descriptor, job domain.DownloadJob) domain.ExecutionResult {
	cleanWorkspace(job.Workspace)

	attemptCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	results := make(chan domain.ExecutionResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				results <- domain.Fail(fmt.Sprintf("unexpected panic in strategy: %v", p))
			}
		}()
		results <- d.Adapter.Fetch(attemptCtx, job, d.Params)
	}()

	var res domain.ExecutionResult
	select {
	case res = <-results:
	case <-attemptCtx.Done():
		// Partial output from the abandoned attempt is left for the
		// next iteration's cleanup; it is never a success.
		if ctx.Err() != nil {
			return domain.Fail(overallDeadlineMsg)
		}
		return domain.Fail(fmt.Sprintf("%s strategy timed out after %s", d.Kind, deadlineLabel(d.Timeout)))
	}

	if !res.OK {
		return res
	}
	return r.validate(res)
}

// validate confirms the claimed output exists and is non-empty, then
// stamps the metadata size from disk rather than trusting the adapter.
func (r *Runner) validate(res domain.ExecutionResult) domain.ExecutionResult {
	if res.File == "" {
		return domain.Fail("strategy reported success without an output file")
	}
	info, err := os.Stat(res.File)
	if err != nil {
		return domain.Fail("strategy output file missing from disk")
	}
	if info.Size() == 0 {
		return domain.Fail("strategy produced an empty output file")
	}
	res.Metadata.SizeBytes = info.Size()
	return res
}

// cleanWorkspace removes residual candidate outputs from a previous
// attempt. Deletion errors are ignored: a stubborn leftover will fail
// validation rather than poison the attempt.
func cleanWorkspace(workspace string) {
	matches, err := filepath.Glob(filepath.Join(workspace, domain.OutputStem+".*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

func deadlineLabel(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return fmt.Sprintf("%d seconds", int(d.Seconds()))
}
