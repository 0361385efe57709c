package jobs

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/reelforge/reelforge/internal/logger"
)

// Enqueuer is the narrow surface the upload service needs from the job
// layer.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *TranscodeJob) error
}

// Dispatcher hands completed uploads to the durable queue with a small
// in-band retry. Enqueue failures are reported to the caller for
// logging but completion never blocks on them: the session stays
// uploaded and the reaper re-enqueues later.
type Dispatcher struct {
	queue       Enqueuer
	maxAttempts uint64
	maxInterval time.Duration
}

// NewDispatcher creates a dispatcher over the given queue.
func NewDispatcher(queue Enqueuer) *Dispatcher {
	return &Dispatcher{
		queue:       queue,
		maxAttempts: 3,
		maxInterval: 2 * time.Second,
	}
}

// Dispatch enqueues one transcode job, retrying transient failures with
// capped exponential backoff.
func (d *Dispatcher) Dispatch(ctx context.Context, job *TranscodeJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = d.maxInterval

	operation := func() error {
		return d.queue.Enqueue(ctx, job)
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, d.maxAttempts-1), ctx))
	if err != nil {
		logger.Error("failed to enqueue transcode job",
			logger.KeySessionID, job.SessionID,
			logger.KeyStorageKey, job.StorageKey,
			logger.KeyError, err)
		return err
	}

	logger.Info("transcode job enqueued",
		logger.KeySessionID, job.SessionID,
		logger.KeyStorageKey, job.StorageKey,
		logger.KeySize, job.TotalBytes)
	return nil
}
