package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reelforge/reelforge/internal/logger"
	"github.com/reelforge/reelforge/pkg/jobs"
	"github.com/reelforge/reelforge/pkg/metrics"
	"github.com/reelforge/reelforge/pkg/store/session"
)

const expiredErrorCode = "expired"

// JobChecker reports whether a session already has a pending job.
// Satisfied by *jobs.Queue.
type JobChecker interface {
	Has(ctx context.Context, sessionID string) (bool, error)
}

// ReaperConfig controls the background sweep.
type ReaperConfig struct {
	// Interval between sweeps.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// StaleThreshold aborts uploading sessions with no chunk activity
	// for this long, even before their TTL.
	StaleThreshold time.Duration `mapstructure:"stale_threshold" yaml:"stale_threshold"`

	// ReenqueueBatch bounds how many uploaded sessions are checked for
	// missing jobs per sweep.
	ReenqueueBatch int `mapstructure:"reenqueue_batch" yaml:"reenqueue_batch"`
}

func (c *ReaperConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = time.Hour
	}
	if c.ReenqueueBatch <= 0 {
		c.ReenqueueBatch = 100
	}
}

// Reaper periodically aborts expired or stale uploading sessions and
// re-enqueues transcode jobs that were lost between completion and the
// durable queue.
type Reaper struct {
	cfg     ReaperConfig
	service *Service
	checker JobChecker
	metrics *metrics.UploadMetrics
}

// NewReaper creates a reaper over the upload service. checker may be
// nil to disable job re-enqueueing.
func NewReaper(cfg ReaperConfig, service *Service, checker JobChecker, um *metrics.UploadMetrics) *Reaper {
	cfg.applyDefaults()
	return &Reaper{cfg: cfg, service: service, checker: checker, metrics: um}
}

// Run sweeps until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	logger.Info("reaper started",
		"interval", r.cfg.Interval,
		"stale_threshold", r.cfg.StaleThreshold)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: abort expired/stale sessions, then re-enqueue
// missing jobs. Safe to run concurrently with live chunk PUTs; each
// session is handled under its own row lock.
func (r *Reaper) Sweep(ctx context.Context) {
	reaped := r.sweepExpired(ctx)
	r.metrics.RecordReaperSweep(reaped)
	r.sweepMissingJobs(ctx)
}

func (r *Reaper) sweepExpired(ctx context.Context) int {
	now := time.Now()
	stale, err := r.service.sessions.ListStale(ctx, now, now.Add(-r.cfg.StaleThreshold))
	if err != nil {
		logger.Error("reaper failed to list stale sessions", logger.KeyError, err)
		return 0
	}

	reaped := 0
	for _, sess := range stale {
		if err := r.reapSession(ctx, sess.ID); err != nil {
			logger.Warn("failed to reap session",
				logger.KeySessionID, sess.ID, logger.KeyError, err)
			continue
		}
		reaped++
	}
	if reaped > 0 {
		logger.Info("reaper aborted expired sessions", "count", reaped)
	}
	return reaped
}

// reapSession aborts one expired session under its row lock. A session
// that received a chunk between the listing and the lock is skipped.
func (r *Reaper) reapSession(ctx context.Context, sessionID string) error {
	now := time.Now()
	staleCutoff := now.Add(-r.cfg.StaleThreshold)

	err := r.service.sessions.WithLockedSession(ctx, sessionID, func(sess *session.UploadSession) error {
		if !sess.Status.AcceptsChunks() {
			return errRollback
		}
		if sess.ExpiresAt.After(now) && sess.UpdatedAt.After(staleCutoff) {
			return errRollback
		}

		if err := r.service.objects.AbortMultipart(ctx, r.service.cfg.Bucket,
			sess.StorageKey, sess.StorageUploadID); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}

		code := expiredErrorCode
		sess.Status = session.StatusAborted
		sess.ErrorCode = &code
		return nil
	})

	if errors.Is(err, errRollback) {
		return nil
	}
	if err != nil {
		return err
	}

	r.metrics.RecordAbort(expiredErrorCode)
	r.service.sessions.RecordMetric(ctx, &session.UploadMetric{
		UploadID:  sessionID,
		EventType: session.EventUploadExpired,
	})
	return nil
}

// sweepMissingJobs re-enqueues transcode jobs for uploaded sessions the
// queue has lost. Enqueue is idempotent by session, so racing with a
// live completion is harmless.
func (r *Reaper) sweepMissingJobs(ctx context.Context) {
	if r.checker == nil {
		return
	}

	uploaded, err := r.service.sessions.ListByStatus(ctx, session.StatusUploaded, r.cfg.ReenqueueBatch)
	if err != nil {
		logger.Error("reaper failed to list uploaded sessions", logger.KeyError, err)
		return
	}

	for _, sess := range uploaded {
		pending, err := r.checker.Has(ctx, sess.ID)
		if err != nil {
			logger.Warn("failed to check pending job",
				logger.KeySessionID, sess.ID, logger.KeyError, err)
			continue
		}
		if pending {
			continue
		}

		logger.Info("re-enqueueing lost transcode job", logger.KeySessionID, sess.ID)
		r.service.enqueueJob(ctx, &jobs.TranscodeJob{
			SessionID:  sess.ID,
			StorageKey: sess.StorageKey,
			UserID:     sess.UserID,
			Filename:   sess.Filename,
			MimeType:   sess.MimeType,
			TotalBytes: sess.TotalBytes,
		})
	}
}
