package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidfetch/vidfetch/internal/core/domain"
	"github.com/vidfetch/vidfetch/internal/core/faults"
	"github.com/vidfetch/vidfetch/internal/metrics"
	"github.com/vidfetch/vidfetch/internal/strategy"
)

// Tracker records attempt outcomes for diagnostics. Implementations
// must be non-blocking best-effort; a nil Tracker disables recording.
type Tracker interface {
	RecordJob(ctx context.Context, job domain.DownloadJob)
	RecordAttempt(ctx context.Context, jobID, strategyName string, ok bool, errMsg string, bytes int64, elapsed time.Duration)
}

// Result is the success payload of a run.
type Result struct {
	File     string
	Metadata domain.VideoMetadata
	Strategy string
}

// CatalogSource yields the ordered strategy list for a job. *Catalog is
// the production implementation.
type CatalogSource interface {
	Build() []strategy.Descriptor
}

// Orchestrator walks the catalog sequentially for one job: first
// validated success wins, a permanently-classified failure stops the
// walk early, and exhaustion aggregates every attempt's failure into
// the final error. Stateless across jobs and safe for concurrent use;
// isolation comes from each job owning its workspace exclusively.
type Orchestrator struct {
	catalog CatalogSource
	runner  *Runner
	tracker Tracker
	log     *slog.Logger
}

func NewOrchestrator(catalog CatalogSource, runner *Runner, tracker Tracker, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{catalog: catalog, runner: runner, tracker: tracker, log: log}
}

// Strategies exposes the catalog as currently built, for the listing
// endpoint. Order matches what Run would execute.
func (o *Orchestrator) Strategies() []strategy.Descriptor {
	return o.catalog.Build()
}

// Run executes the fallback loop and returns either a validated
// success or a fully classified failure, never a raw error.
func (o *Orchestrator) Run(ctx context.Context, job domain.DownloadJob) (*Result, *faults.Detail) {
	if job.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Deadline)
		defer cancel()
	}

	catalog := o.catalog.Build()
	if job.OnlyStrategy > 0 {
		if job.OnlyStrategy > len(catalog) {
			d := faults.Classify(fmt.Sprintf("invalid strategy number %d (catalog has %d)", job.OnlyStrategy, len(catalog)))
			return nil, &d
		}
		catalog = catalog[job.OnlyStrategy-1 : job.OnlyStrategy]
	}
	if len(catalog) == 0 {
		d := faults.Classify("no download strategies available")
		return nil, &d
	}

	if o.tracker != nil {
		o.tracker.RecordJob(ctx, job)
	}

	metrics.ActiveDownloads.Inc()
	defer metrics.ActiveDownloads.Dec()

	total := len(catalog)
	o.log.Info("starting download", "job", job.ID, "url", job.SourceURL, "strategies", total)

	var attempts domain.AttemptLog
	var lastError *faults.Detail

	for i, d := range catalog {
		if ctx.Err() != nil {
			lastError = o.deadlineFailure(&attempts, d.Name)
			break
		}

		o.log.Info("trying strategy", "job", job.ID, "num", i+1, "total", total, "strategy", d.Name)

		start := time.Now()
		res := o.runner.Execute(ctx, d, job)
		elapsed := time.Since(start)
		metrics.AttemptDuration.WithLabelValues(d.Kind).Observe(elapsed.Seconds())

		if res.OK {
			metrics.StrategyAttempts.WithLabelValues(d.Name, "success").Inc()
			if o.tracker != nil {
				o.tracker.RecordAttempt(ctx, job.ID, d.Name, true, "", res.Metadata.SizeBytes, elapsed)
			}
			o.log.Info("strategy succeeded",
				"job", job.ID, "strategy", d.Name, "file", res.File, "bytes", res.Metadata.SizeBytes)
			metrics.DownloadsTotal.WithLabelValues("success").Inc()
			return &Result{File: res.File, Metadata: res.Metadata, Strategy: d.Name}, nil
		}

		metrics.StrategyAttempts.WithLabelValues(d.Name, "failure").Inc()
		if o.tracker != nil {
			o.tracker.RecordAttempt(ctx, job.ID, d.Name, false, res.Err, 0, elapsed)
		}
		attempts = append(attempts, domain.AttemptRecord{Strategy: d.Name, Error: res.Err})

		classified := faults.Classify(res.Err)
		lastError = &classified
		o.log.Warn("strategy failed",
			"job", job.ID, "strategy", d.Name, "code", classified.Code, "error", truncateMsg(res.Err))

		if faults.IsPermanent(classified) {
			o.log.Error("permanent error, stopping all strategies", "job", job.ID, "code", classified.Code)
			break
		}
		if ctx.Err() != nil {
			// The attempt cut off by the deadline was appended above;
			// only the classification needs replacing. One log entry
			// per attempted strategy, always.
			d := faults.Classify(overallDeadlineMsg)
			lastError = &d
			break
		}
	}

	o.log.Error("all strategies failed", "job", job.ID, "attempted", len(attempts))
	metrics.DownloadsTotal.WithLabelValues("failure").Inc()

	if lastError == nil {
		classified := faults.Classify(fmt.Sprintf("All %d download strategies failed", total))
		lastError = &classified
	}
	// Most-recent-cause reporting: the last classified error wins, the
	// full ordered log rides along for diagnostics.
	if lastError.Details == nil {
		lastError.Details = map[string]any{}
	}
	lastError.Details["all_strategy_errors"] = attempts.Lines()
	return nil, lastError
}

// overallDeadlineMsg is the canonical abort message for the job-level
// deadline; Classify maps it to DOWNLOAD_TIMEOUT.
const overallDeadlineMsg = "download timed out: overall deadline exceeded"

// deadlineFailure records a strategy that was never started because the
// job deadline had already expired.
func (o *Orchestrator) deadlineFailure(attempts *domain.AttemptLog, at string) *faults.Detail {
	*attempts = append(*attempts, domain.AttemptRecord{Strategy: at, Error: overallDeadlineMsg})
	d := faults.Classify(overallDeadlineMsg)
	return &d
}

func truncateMsg(s string) string {
	if len(s) > 120 {
		return s[:120]
	}
	return s
}
