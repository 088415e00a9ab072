package fallback

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vidfetch/vidfetch/internal/core/domain"
	"github.com/vidfetch/vidfetch/internal/core/faults"
	"github.com/vidfetch/vidfetch/internal/strategy"
)

type staticCatalog []strategy.Descriptor

func (c staticCatalog) Build() []strategy.Descriptor { return c }

type scriptStep func(job domain.DownloadJob) domain.ExecutionResult

// scriptAdapter replays one canned step per descriptor name and records
// the invocation order. Steps run at fetch time so success steps can
// write their output after the runner's workspace cleanup.
type scriptAdapter struct {
	mu    sync.Mutex
	steps map[string]scriptStep
	order []string
}

func (a *scriptAdapter) Kind() string { return "script" }

func (a *scriptAdapter) Fetch(ctx context.Context, job domain.DownloadJob, params strategy.Params) domain.ExecutionResult {
	a.mu.Lock()
	name := params["name"]
	a.order = append(a.order, name)
	step := a.steps[name]
	a.mu.Unlock()
	if step == nil {
		return domain.Fail("no scripted step for " + name)
	}
	return step(job)
}

func failWith(msg string) scriptStep {
	return func(domain.DownloadJob) domain.ExecutionResult { return domain.Fail(msg) }
}

func succeedStep(t *testing.T) scriptStep {
	t.Helper()
	return func(job domain.DownloadJob) domain.ExecutionResult {
		path := job.OutputPath()
		if err := os.WriteFile(path, []byte("video bytes"), 0o644); err != nil {
			t.Error(err)
			return domain.Failf("write output", err)
		}
		return domain.Succeed(path, domain.VideoMetadata{Title: "clip"})
	}
}

func scripted(steps map[string]scriptStep, names ...string) (*Orchestrator, *scriptAdapter) {
	adapter := &scriptAdapter{steps: steps}
	var catalog staticCatalog
	for _, n := range names {
		catalog = append(catalog, strategy.Descriptor{
			Name:    n,
			Kind:    "script",
			Adapter: adapter,
			Timeout: time.Minute,
			Params:  strategy.Params{"name": n},
		})
	}
	return NewOrchestrator(catalog, NewRunner(nil), nil, nil), adapter
}

func TestRunFirstSuccessWins(t *testing.T) {
	job := testJob(t)
	orch, adapter := scripted(map[string]scriptStep{
		"s1": failWith("connection refused"),
		"s2": succeedStep(t),
		"s3": failWith("never reached"),
	}, "s1", "s2", "s3")

	res, detail := orch.Run(context.Background(), job)
	if detail != nil {
		t.Fatalf("Run failed: %+v", detail)
	}
	if res.Strategy != "s2" {
		t.Errorf("winning strategy = %q, want s2", res.Strategy)
	}
	if res.Metadata.SizeBytes == 0 {
		t.Error("size not stamped on the winning result")
	}
	if len(adapter.order) != 2 {
		t.Errorf("invoked %v, want exactly [s1 s2]", adapter.order)
	}
}

func TestRunPermanentShortCircuit(t *testing.T) {
	job := testJob(t)
	orch, adapter := scripted(map[string]scriptStep{
		"s1": failWith("HTTP Error 403"),
		"s2": failWith("This video is private"),
		"s3": failWith("never reached"),
	}, "s1", "s2", "s3")

	res, detail := orch.Run(context.Background(), job)
	if res != nil {
		t.Fatal("permanent failure produced a success")
	}
	if detail.Code != faults.VideoUnavailable {
		t.Errorf("code = %s, want VIDEO_UNAVAILABLE", detail.Code)
	}
	if len(adapter.order) != 2 {
		t.Errorf("invoked %v, want stop after s2", adapter.order)
	}
	lines, _ := detail.Details["all_strategy_errors"].([]string)
	if len(lines) != 2 {
		t.Errorf("attempt log = %v, want 2 entries", lines)
	}
}

func TestRunExhaustionAggregates(t *testing.T) {
	job := testJob(t)
	orch, adapter := scripted(map[string]scriptStep{
		"s1": failWith("connection refused"),
		"s2": failWith("HTTP 429 too many requests"),
		"s3": failWith("read timed out"),
	}, "s1", "s2", "s3")

	res, detail := orch.Run(context.Background(), job)
	if res != nil {
		t.Fatal("exhausted run produced a success")
	}
	// Most-recent-cause reporting: the last failure drives the code.
	if detail.Code != faults.DownloadTimeout {
		t.Errorf("code = %s, want DOWNLOAD_TIMEOUT from final attempt", detail.Code)
	}
	if len(adapter.order) != 3 {
		t.Errorf("invoked %v, want all three", adapter.order)
	}
	lines, _ := detail.Details["all_strategy_errors"].([]string)
	want := []string{
		"[s1]: connection refused",
		"[s2]: HTTP 429 too many requests",
		"[s3]: read timed out",
	}
	if len(lines) != len(want) {
		t.Fatalf("attempt log = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("attempt log[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestRunOnlyStrategy(t *testing.T) {
	job := testJob(t)
	job.OnlyStrategy = 2
	orch, adapter := scripted(map[string]scriptStep{
		"s1": failWith("never reached"),
		"s2": succeedStep(t),
		"s3": failWith("never reached"),
	}, "s1", "s2", "s3")

	res, detail := orch.Run(context.Background(), job)
	if detail != nil {
		t.Fatalf("Run failed: %+v", detail)
	}
	if res.Strategy != "s2" {
		t.Errorf("winning strategy = %q, want s2", res.Strategy)
	}
	if len(adapter.order) != 1 || adapter.order[0] != "s2" {
		t.Errorf("invoked %v, want exactly [s2]", adapter.order)
	}
}

func TestRunOnlyStrategyOutOfRange(t *testing.T) {
	job := testJob(t)
	job.OnlyStrategy = 99
	orch, _ := scripted(map[string]scriptStep{}, "s1")

	res, detail := orch.Run(context.Background(), job)
	if res != nil {
		t.Fatal("out-of-range strategy number produced a success")
	}
	if detail.Code != faults.InvalidURL {
		t.Errorf("code = %s, want INVALID_URL for a bad strategy number", detail.Code)
	}
}

func TestRunOverallDeadlineAborts(t *testing.T) {
	job := testJob(t)
	job.Deadline = 30 * time.Millisecond

	adapter := funcAdapter{kind: "slow", fn: func(ctx context.Context, job domain.DownloadJob, _ strategy.Params) domain.ExecutionResult {
		<-ctx.Done()
		return domain.Fail("canceled")
	}}
	var catalog staticCatalog
	for _, n := range []string{"s1", "s2", "s3"} {
		catalog = append(catalog, strategy.Descriptor{
			Name: n, Kind: "slow", Adapter: adapter, Timeout: time.Minute,
		})
	}
	orch := NewOrchestrator(catalog, NewRunner(nil), nil, nil)

	start := time.Now()
	res, detail := orch.Run(context.Background(), job)
	if res != nil {
		t.Fatal("deadline-cut run produced a success")
	}
	if detail.Code != faults.DownloadTimeout {
		t.Errorf("code = %s, want DOWNLOAD_TIMEOUT", detail.Code)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("run took %s, deadline did not abort the walk", elapsed)
	}
}

func TestRunDeadlineMidAttemptLogsOnce(t *testing.T) {
	job := testJob(t)
	job.Deadline = 30 * time.Millisecond

	var calls atomic.Int32
	adapter := funcAdapter{kind: "slow", fn: func(ctx context.Context, job domain.DownloadJob, _ strategy.Params) domain.ExecutionResult {
		calls.Add(1)
		<-ctx.Done()
		// Outlive the runner's select so the deadline branch wins.
		time.Sleep(200 * time.Millisecond)
		return domain.Fail("canceled")
	}}
	var catalog staticCatalog
	for _, n := range []string{"s1", "s2", "s3"} {
		catalog = append(catalog, strategy.Descriptor{
			Name: n, Kind: "slow", Adapter: adapter, Timeout: time.Minute,
		})
	}
	orch := NewOrchestrator(catalog, NewRunner(nil), nil, nil)

	res, detail := orch.Run(context.Background(), job)
	if res != nil {
		t.Fatal("deadline-cut run produced a success")
	}
	if detail.Code != faults.DownloadTimeout {
		t.Errorf("code = %s, want DOWNLOAD_TIMEOUT", detail.Code)
	}
	lines, _ := detail.Details["all_strategy_errors"].([]string)
	if len(lines) != 1 {
		t.Fatalf("attempt log = %v, want exactly one entry for the cut-off strategy", lines)
	}
	if lines[0] != "[s1]: download timed out: overall deadline exceeded" {
		t.Errorf("attempt log entry = %q", lines[0])
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("adapter invoked %d times, want 1", got)
	}
}

func TestRunEmptyCatalog(t *testing.T) {
	job := testJob(t)
	orch := NewOrchestrator(staticCatalog{}, NewRunner(nil), nil, nil)

	res, detail := orch.Run(context.Background(), job)
	if res != nil {
		t.Fatal("empty catalog produced a success")
	}
	if detail == nil {
		t.Fatal("empty catalog produced no failure detail")
	}
}

type recordingTracker struct {
	mu       sync.Mutex
	jobs     []string
	attempts []string
}

func (r *recordingTracker) RecordJob(ctx context.Context, job domain.DownloadJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job.ID)
}

func (r *recordingTracker) RecordAttempt(ctx context.Context, jobID, name string, ok bool, errMsg string, bytes int64, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, name)
}

func TestRunRecordsAttempts(t *testing.T) {
	job := testJob(t)
	tracker := &recordingTracker{}
	adapter := &scriptAdapter{steps: map[string]scriptStep{
		"s1": failWith("connection refused"),
		"s2": succeedStep(t),
	}}
	catalog := staticCatalog{
		{Name: "s1", Kind: "script", Adapter: adapter, Timeout: time.Minute, Params: strategy.Params{"name": "s1"}},
		{Name: "s2", Kind: "script", Adapter: adapter, Timeout: time.Minute, Params: strategy.Params{"name": "s2"}},
	}
	orch := NewOrchestrator(catalog, NewRunner(nil), tracker, nil)

	if _, detail := orch.Run(context.Background(), job); detail != nil {
		t.Fatalf("Run failed: %+v", detail)
	}
	if len(tracker.jobs) != 1 || tracker.jobs[0] != job.ID {
		t.Errorf("recorded jobs = %v", tracker.jobs)
	}
	if len(tracker.attempts) != 2 {
		t.Errorf("recorded attempts = %v, want 2", tracker.attempts)
	}
}
