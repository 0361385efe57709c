package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func testJob(sessionID string) *TranscodeJob {
	return &TranscodeJob{
		SessionID:  sessionID,
		StorageKey: "uploads/user-1/" + sessionID + "/movie.mp4",
		UserID:     "user-1",
		Filename:   "movie.mp4",
		MimeType:   "video/mp4",
		TotalBytes: 10240,
	}
}

func TestEnqueueDequeueAck(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("s1")))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "video/mp4", got.MimeType)

	// Not removed until acked.
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, q.Ack(ctx, "s1"))
	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrNoJobs)
}

func TestEnqueueIdempotentPerSession(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("s1")))
	require.NoError(t, q.Enqueue(ctx, testJob("s1")))
	require.NoError(t, q.Enqueue(ctx, testJob("s2")))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHas(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	found, err := q.Has(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, q.Enqueue(ctx, testJob("s1")))
	found, err = q.Has(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestAckAbsentIsNoop(t *testing.T) {
	q := newTestQueue(t)
	assert.NoError(t, q.Ack(context.Background(), "never-enqueued"))
}

func TestClosedQueue(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Close())

	ctx := context.Background()
	assert.ErrorIs(t, q.Enqueue(ctx, testJob("s1")), ErrQueueClosed)
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Ack(ctx, "s1"), ErrQueueClosed)
}

type flakyEnqueuer struct {
	failures int
	calls    int
	jobs     []*TranscodeJob
}

func (f *flakyEnqueuer) Enqueue(_ context.Context, job *TranscodeJob) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient")
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	q := &flakyEnqueuer{failures: 2}
	d := NewDispatcher(q)

	err := d.Dispatch(context.Background(), testJob("s1"))
	require.NoError(t, err)
	assert.Equal(t, 3, q.calls)
	require.Len(t, q.jobs, 1)
	assert.False(t, q.jobs[0].EnqueuedAt.IsZero())
}

func TestDispatcherGivesUpAfterBoundedRetries(t *testing.T) {
	q := &flakyEnqueuer{failures: 10}
	d := NewDispatcher(q)

	err := d.Dispatch(context.Background(), testJob("s1"))
	assert.Error(t, err)
	assert.Equal(t, 3, q.calls)
}
