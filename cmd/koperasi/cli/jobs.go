package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/koperasi/internal/integration"
	"github.com/odyssey-erp/koperasi/internal/platform/cache"
	"github.com/odyssey-erp/koperasi/jobs"
)

// JobsCLI queues and inspects worker tasks from the command line.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI connects to the configured Redis.
func NewJobsCLI(redisOpts cache.Options) (*JobsCLI, error) {
	if !redisOpts.Enabled() {
		return nil, errors.New("jobs cli: REDIS_ADDR is empty")
	}
	client, err := jobs.NewClient(redisOpts.Asynq())
	if err != nil {
		return nil, err
	}
	return &JobsCLI{client: client, inspector: asynq.NewInspector(redisOpts.Asynq())}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	return errors.Join(c.inspector.Close(), c.client.Close())
}

// TriggerGLIntegrity queues an integrity check. An empty period checks the
// current month.
func (c *JobsCLI) TriggerGLIntegrity(ctx context.Context, period string) (string, error) {
	return c.client.EnqueueGLIntegrity(ctx, period)
}

// EnqueueBatch reads a JSON document {"transactions": [...]} and queues it
// as one sync batch.
func (c *JobsCLI) EnqueueBatch(ctx context.Context, r io.Reader) (string, error) {
	txs, err := ReadTransactions(r)
	if err != nil {
		return "", err
	}
	return c.client.EnqueueSyncBatch(ctx, txs)
}

// ReadTransactions decodes and validates a batch file.
func ReadTransactions(r io.Reader) ([]integration.Transaction, error) {
	var payload jobs.SyncBatchPayload
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("jobs cli: decode batch: %w", err)
	}
	if len(payload.Transactions) == 0 {
		return nil, errors.New("jobs cli: batch has no transactions")
	}
	for i, tx := range payload.Transactions {
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("transactions[%d]: %w", i, err)
		}
	}
	return payload.Transactions, nil
}

// InspectQueue reports the default queue counters.
func (c *JobsCLI) InspectQueue() (jobs.QueueStats, error) {
	return jobs.QueueState(c.inspector, jobs.QueueDefault)
}

// ListScheduled returns up to size tasks waiting for their process time.
func (c *JobsCLI) ListScheduled(size int) ([]*asynq.TaskInfo, error) {
	if size <= 0 {
		size = 10
	}
	tasks, err := c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, nil
	}
	return tasks, err
}
