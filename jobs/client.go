package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/odyssey-erp/koperasi/internal/integration"
)

// ErrBatchPending reports that the same batch is still queued.
var ErrBatchPending = fmt.Errorf("%w: identical batch already queued", shared.ErrState)

// Client enqueues ledger tasks. It satisfies integration.Enqueuer.
type Client struct {
	client *asynq.Client
}

// NewClient connects a task client to Redis.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	if redisOpts.Addr == "" {
		return nil, errors.New("jobs: redis address is empty")
	}
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueSyncBatch queues txs and returns the task id.
func (c *Client) EnqueueSyncBatch(ctx context.Context, txs []integration.Transaction) (string, error) {
	task, err := NewSyncBatchTask(txs)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task)
}

// EnqueueGLIntegrity queues an integrity check for period ("" = current).
func (c *Client) EnqueueGLIntegrity(ctx context.Context, period string) (string, error) {
	task, err := NewGLIntegrityTask(period)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) (string, error) {
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		return "", ErrBatchPending
	case err != nil:
		return "", fmt.Errorf("jobs: enqueue %s: %w", task.Type(), err)
	}
	return info.ID, nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
