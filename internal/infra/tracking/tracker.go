package tracking

import (
	"context"
	"log/slog"
	"time"

	"github.com/vidfetch/vidfetch/internal/core/domain"
)

// Tracker writes job and attempt rows. Writes use a short independent
// timeout so a slow database cannot stall a download in progress.
type Tracker struct {
	db  *DB
	log *slog.Logger
}

func NewTracker(db *DB, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{db: db, log: log}
}

const writeTimeout = 2 * time.Second

func (t *Tracker) RecordJob(ctx context.Context, job domain.DownloadJob) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	_, err := t.db.ExecContext(wctx, `
		INSERT INTO download_jobs (id, source_url, quality, format, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO NOTHING`,
		job.ID, job.SourceURL, string(job.Quality), job.Format)
	if err != nil {
		t.log.Warn("failed to record job", "job", job.ID, "error", err)
	}
}

func (t *Tracker) RecordAttempt(ctx context.Context, jobID, strategyName string, ok bool, errMsg string, bytes int64, elapsed time.Duration) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if len(errMsg) > 1000 {
		errMsg = errMsg[:1000]
	}
	_, err := t.db.ExecContext(wctx, `
		INSERT INTO strategy_attempts (job_id, strategy, succeeded, error, bytes, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		jobID, strategyName, ok, errMsg, bytes, elapsed.Milliseconds())
	if err != nil {
		t.log.Warn("failed to record attempt", "job", jobID, "strategy", strategyName, "error", err)
	}
}

// StrategyStats is an aggregate row for the health endpoint.
type StrategyStats struct {
	Strategy  string `json:"strategy"`
	Attempts  int64  `json:"attempts"`
	Successes int64  `json:"successes"`
}

// Stats returns per-strategy attempt counts since the given time.
func (t *Tracker) Stats(ctx context.Context, since time.Time) ([]StrategyStats, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT strategy, COUNT(*), COUNT(*) FILTER (WHERE succeeded)
		FROM strategy_attempts
		WHERE created_at >= $1
		GROUP BY strategy
		ORDER BY strategy`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StrategyStats
	for rows.Next() {
		var s StrategyStats
		if err := rows.Scan(&s.Strategy, &s.Attempts, &s.Successes); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
