package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Client enqueues ingestion tasks onto the Redis broker.
type Client struct {
	inner *asynq.Client
}

// NewClient connects a task producer to Redis.
func NewClient(opt asynq.RedisClientOpt) *Client {
	return &Client{inner: asynq.NewClient(opt)}
}

// EnqueueIngest queues an ingestion task for jobID. A task with the same
// job ID already in the queue makes this a no-op error from asynq, which
// is surfaced to the caller.
func (c *Client) EnqueueIngest(ctx context.Context, jobID, url string) error {
	task, err := NewIngestTask(jobID, url)
	if err != nil {
		return err
	}
	if _, err := c.inner.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("queue: enqueue job %s: %w", jobID, err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.inner.Close()
}
