package jobs

import (
	"context"
	"fmt"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
)

var jobKeyPrefix = []byte("job/")

func jobKey(sessionID string) []byte {
	return append(append([]byte{}, jobKeyPrefix...), sessionID...)
}

// Queue is a Badger-backed durable job queue keyed by session ID.
//
// Enqueue is idempotent per session: a session has at most one pending
// job regardless of how many times it is enqueued. Jobs stay in the
// queue until Ack.
type Queue struct {
	db *badgerdb.DB

	mu     sync.Mutex
	closed bool
}

// Open opens (or creates) the queue database at the given directory.
func Open(path string) (*Queue, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open job queue: %w", err)
	}
	return &Queue{db: db}, nil
}

// OpenInMemory opens an in-memory queue for tests.
func OpenInMemory() (*Queue, error) {
	opts := badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open job queue: %w", err)
	}
	return &Queue{db: db}, nil
}

// Close closes the underlying database. Pending jobs are kept on disk.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	return q.db.Close()
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Enqueue stores the job under its session ID. Re-enqueueing an already
// pending session overwrites it with the fresh payload and succeeds.
func (q *Queue) Enqueue(ctx context.Context, job *TranscodeJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.isClosed() {
		return ErrQueueClosed
	}

	data, err := job.encode()
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	err = q.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(jobKey(job.SessionID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Has reports whether a pending job exists for the session.
func (q *Queue) Has(ctx context.Context, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if q.isClosed() {
		return false, ErrQueueClosed
	}

	var found bool
	err := q.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(jobKey(sessionID))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check job: %w", err)
	}
	return found, nil
}

// Dequeue returns one pending job without removing it. The caller must
// Ack after the job has been processed; until then the same job may be
// delivered again.
func (q *Queue) Dequeue(ctx context.Context) (*TranscodeJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.isClosed() {
		return nil, ErrQueueClosed
	}

	var job *TranscodeJob
	err := q.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{
			Prefix:         jobKeyPrefix,
			PrefetchValues: true,
			PrefetchSize:   1,
		})
		defer it.Close()

		it.Rewind()
		if !it.Valid() {
			return ErrNoJobs
		}
		return it.Item().Value(func(val []byte) error {
			decoded, err := decodeJob(val)
			if err != nil {
				return err
			}
			job = decoded
			return nil
		})
	})
	if err != nil {
		if err == ErrNoJobs {
			return nil, ErrNoJobs
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	return job, nil
}

// Ack removes the pending job for a session. Acking an absent job is a
// no-op, so duplicate deliveries resolve cleanly.
func (q *Queue) Ack(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.isClosed() {
		return ErrQueueClosed
	}

	err := q.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(jobKey(sessionID))
	})
	if err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Len returns the number of pending jobs.
func (q *Queue) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if q.isClosed() {
		return 0, ErrQueueClosed
	}

	var count int
	err := q.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: jobKeyPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}
