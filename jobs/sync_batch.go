package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/koperasi/internal/integration"
	jobmetrics "github.com/odyssey-erp/koperasi/internal/jobs"
)

// BatchSyncer is the slice of the syncer the job needs.
type BatchSyncer interface {
	BatchSync(ctx context.Context, txs []integration.Transaction) integration.BatchResult
}

// SyncBatchJob runs queued batch syncs. Item failures are reported through
// logs and metrics and never retried, since the syncer already skips what
// was recorded.
type SyncBatchJob struct {
	Syncer  BatchSyncer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

func NewSyncBatchJob(syncer BatchSyncer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SyncBatchJob {
	return &SyncBatchJob{Syncer: syncer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLedgerSyncBatch tasks.
func (j *SyncBatchJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Syncer == nil {
		return errors.New("sync batch: handler not configured")
	}
	var payload SyncBatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	done := j.Metrics.Start(jobmetrics.JobSyncBatch)
	result := j.Syncer.BatchSync(ctx, payload.Transactions)
	j.Metrics.CountItems(jobmetrics.JobSyncBatch, map[string]int{
		"synced":    result.Succeeded - result.Duplicates,
		"duplicate": result.Duplicates,
		"failed":    result.Failed,
	})

	logger := j.logger().With(slog.String("task", TaskLedgerSyncBatch))
	for _, e := range result.Errors {
		logger.Warn("batch item failed",
			slog.String("transaction_id", e.TransactionID),
			slog.String("member", e.Member),
			slog.String("error", e.Message))
	}
	logger.Info("sync batch completed",
		slog.Int("succeeded", result.Succeeded),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("failed", result.Failed))
	return done(ctx.Err())
}

func (j *SyncBatchJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
