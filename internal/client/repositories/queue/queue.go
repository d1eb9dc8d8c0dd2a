// Package queue persists the per-domain list of mutations that still have to
// be replayed against the server.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/models"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/lifekeeper/internal/logging"
)

// Store key suffixes appended to the domain name.
const (
	KeySuffix    = "_sync_queue"
	SeqKeySuffix = "_sync_seq"
)

// Key returns the store key of a domain's queue.
func Key(domain string) string { return domain + KeySuffix }

// SeqKey returns the store key holding the last sequence number handed out,
// so numbering keeps increasing after the queue is emptied.
func SeqKey(domain string) string { return domain + SeqKeySuffix }

// Queue is an append-only, ordered log of SyncOperations for one domain.
// Operations are never coalesced: two updates of the same entity are two
// entries replayed in order.
type Queue struct {
	store  kv.Store
	key    string
	seqKey string
	log    logging.Logger
	now    func() time.Time
}

func New(store kv.Store, domain string, log logging.Logger) *Queue {
	if log == nil {
		log = logging.NewNop()
	}
	return &Queue{store: store, key: Key(domain), seqKey: SeqKey(domain), log: log, now: time.Now}
}

// Bind returns a Queue that reads and writes through tx.
func (q *Queue) Bind(tx kv.Store) *Queue {
	cp := *q
	cp.store = tx
	return &cp
}

// Enqueue appends op, assigning the next sequence number and the enqueue
// time. The stored operation is returned.
func (q *Queue) Enqueue(ctx context.Context, op models.SyncOperation) (models.SyncOperation, error) {
	err := q.store.WithinTx(ctx, func(ctx context.Context, tx kv.Store) error {
		ops, _, err := kv.Load[[]models.SyncOperation](ctx, tx, q.log, q.key)
		if err != nil {
			return err
		}
		last, _, err := kv.Load[int64](ctx, tx, q.log, q.seqKey)
		if err != nil {
			return err
		}
		op.Seq = max(last, tailSeq(ops)) + 1
		if op.EnqueuedAt.IsZero() {
			op.EnqueuedAt = q.now().UTC()
		}
		if err := kv.Save(ctx, tx, q.seqKey, op.Seq); err != nil {
			return err
		}
		return kv.Save(ctx, tx, q.key, append(ops, op))
	})
	if err != nil {
		return op, fmt.Errorf("enqueue %s: %w", q.key, err)
	}
	return op, nil
}

// Drain returns every queued operation in sequence order without removing
// anything.
func (q *Queue) Drain(ctx context.Context) ([]models.SyncOperation, error) {
	ops, _, err := kv.Load[[]models.SyncOperation](ctx, q.store, q.log, q.key)
	if err != nil {
		return nil, fmt.Errorf("drain %s: %w", q.key, err)
	}
	return ops, nil
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	ops, err := q.Drain(ctx)
	return len(ops), err
}

func (q *Queue) Clear(ctx context.Context) error {
	return kv.Remove(ctx, q.store, q.key)
}

// Replace overwrites the queue with ops. Only the sync service commit step
// uses it.
func (q *Queue) Replace(ctx context.Context, ops []models.SyncOperation) error {
	if len(ops) == 0 {
		return q.Clear(ctx)
	}
	return kv.Save(ctx, q.store, q.key, ops)
}

func tailSeq(ops []models.SyncOperation) int64 {
	var last int64
	for _, op := range ops {
		last = max(last, op.Seq)
	}
	return last
}
