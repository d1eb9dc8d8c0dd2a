package services

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/client"
	"github.com/dmitrijs2005/lifekeeper/internal/client/models"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/queue"
	"github.com/dmitrijs2005/lifekeeper/internal/logging"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxAttempts bounds how many passes a retryable operation survives.
const DefaultMaxAttempts = 5

// State is the phase of a sync pass.
type State string

const (
	StateIdle     State = "idle"
	StateDraining State = "draining"
	StateFetching State = "fetching"
	StateFailed   State = "failed"
)

// Pass outcomes reported to Metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRetained = "retained"
	OutcomeDropped  = "dropped"
)

// Metrics receives sync observations. metrics.Collector implements it.
type Metrics interface {
	ObservePass(domain, outcome string, d time.Duration)
	ObserveOperation(domain string, op models.OpType, outcome string)
	SetQueueLength(domain string, n int)
}

type nopMetrics struct{}

func (nopMetrics) ObservePass(string, string, time.Duration)      {}
func (nopMetrics) ObserveOperation(string, models.OpType, string) {}
func (nopMetrics) SetQueueLength(string, int)                     {}

// SyncResult summarizes one pass.
type SyncResult struct {
	Replayed int
	// Failed counts operations the server did not accept, retained or dropped.
	Failed   int
	Dropped  int
	Retained int
	// IDMap maps temporary ids to the ids the server assigned.
	IDMap    map[string]string
	Duration time.Duration
}

// SyncOptions tunes a SyncService.
type SyncOptions struct {
	MaxAttempts int
	Metrics     Metrics
	Logger      logging.Logger
}

// SyncService reconciles one domain's queue with the server.
//
// A pass replays the queue in order, refetches the full collection and, in
// one store transaction, replaces the cache with the server list and the
// queue with whatever still has to be sent. Operations queued while the pass
// ran are kept and re-applied on top of the new snapshot. Concurrent
// SyncChanges calls join the pass already running.
type SyncService[T models.Record] struct {
	domain Domain[T]
	store  kv.Store
	queue  *queue.Queue
	remote client.Remote[T]

	log         logging.Logger
	metrics     Metrics
	maxAttempts int
	now         func() time.Time

	group  singleflight.Group
	passMu sync.Mutex

	mu      sync.RWMutex
	state   State
	lastErr error
	lastRun time.Time
}

func NewSyncService[T models.Record](d Domain[T], store kv.Store, remote client.Remote[T], opts SyncOptions) *SyncService[T] {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	log = log.With("domain", d.Name)
	m := opts.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return &SyncService[T]{
		domain:      d,
		store:       store,
		queue:       queue.New(store, d.Name, log),
		remote:      remote,
		log:         log,
		metrics:     m,
		maxAttempts: attempts,
		now:         time.Now,
		state:       StateIdle,
	}
}

// State returns the current phase. After a failed pass it stays
// StateFailed until the next pass starts; LastError has the cause.
func (s *SyncService[T]) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *SyncService[T]) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// LastSync returns when the last successful pass or pull finished.
func (s *SyncService[T]) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

func (s *SyncService[T]) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *SyncService[T]) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		s.state = StateFailed
		return
	}
	s.state = StateIdle
	s.lastRun = s.now()
}

// SyncChanges drains the queue. With an empty queue it returns immediately
// without contacting the server. Concurrent callers share one pass, which is
// not cancelled when the caller that started it goes away.
func (s *SyncService[T]) SyncChanges(ctx context.Context) (SyncResult, error) {
	passCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do("sync", func() (any, error) {
		s.passMu.Lock()
		defer s.passMu.Unlock()
		return s.syncChanges(passCtx)
	})
	res, _ := v.(SyncResult)
	return res, err
}

// Pull refreshes the cache from the server without replaying anything.
// Queued operations are re-applied on top of the snapshot.
func (s *SyncService[T]) Pull(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	_, err, _ := s.group.Do("pull", func() (any, error) {
		s.passMu.Lock()
		defer s.passMu.Unlock()

		s.setState(StateFetching)
		snapshot, err := s.remote.List(ctx)
		if err != nil {
			err = fmt.Errorf("refetch %s: %w", s.domain.Name, err)
			s.finish(err)
			return nil, err
		}
		err = s.commit(ctx, snapshot, 0, nil, nil)
		s.finish(err)
		return nil, err
	})
	return err
}

func (s *SyncService[T]) syncChanges(ctx context.Context) (SyncResult, error) {
	start := s.now()
	res := SyncResult{IDMap: map[string]string{}}

	ops, err := s.queue.Drain(ctx)
	if err != nil {
		return res, err
	}
	if len(ops) == 0 {
		s.metrics.SetQueueLength(s.domain.Name, 0)
		return res, nil
	}

	s.setState(StateDraining)
	s.log.Info(ctx, "sync started", "operations", len(ops))

	var (
		retained []models.SyncOperation
		lastSeq  int64
		// temporary ids whose create is retained or was dropped
		pendingCreate = map[string]bool{}
		droppedCreate = map[string]bool{}
	)

	for _, op := range ops {
		lastSeq = max(lastSeq, op.Seq)
		op = remap(op, res.IDMap)

		if target := op.Target(); op.Type != models.OpCreate && models.IsTemporaryID(target) {
			switch {
			case pendingCreate[target]:
				op.LastError = "waiting for create of " + target
				retained = append(retained, op)
				s.metrics.ObserveOperation(s.domain.Name, op.Type, OutcomeRetained)
				continue
			case droppedCreate[target], op.Type == models.OpDelete:
				// Nothing to send: the entity never reached the server.
				s.log.Debug(ctx, "skipping operation on unsynced entity", "op", op.Type, "id", target)
				res.Dropped++
				s.metrics.ObserveOperation(s.domain.Name, op.Type, OutcomeDropped)
				continue
			}
		}

		err := s.replay(ctx, op, res.IDMap)
		if err == nil {
			res.Replayed++
			s.metrics.ObserveOperation(s.domain.Name, op.Type, OutcomeSuccess)
			continue
		}

		res.Failed++
		s.log.Warn(ctx, "sync operation failed", "op", op.Type, "id", op.Target(), "attempt", op.Attempts+1, "error", err)

		if client.IsRetryable(err) && op.Attempts+1 < s.maxAttempts {
			op.Attempts++
			op.LastError = err.Error()
			retained = append(retained, op)
			if op.Type == models.OpCreate {
				pendingCreate[op.LocalID] = true
			}
			s.metrics.ObserveOperation(s.domain.Name, op.Type, OutcomeRetained)
			continue
		}

		s.log.Error(ctx, "dropping sync operation", "op", op.Type, "id", op.Target(), "error", err)
		res.Dropped++
		if op.Type == models.OpCreate {
			droppedCreate[op.LocalID] = true
		}
		s.metrics.ObserveOperation(s.domain.Name, op.Type, OutcomeDropped)
	}
	res.Retained = len(retained)

	s.setState(StateFetching)
	snapshot, err := s.remote.List(ctx)
	if err != nil {
		err = fmt.Errorf("refetch %s: %w", s.domain.Name, err)
		s.log.Warn(ctx, "sync aborted, queue kept", "error", err)
		return s.done(res, start, err)
	}

	if err := s.commit(ctx, snapshot, lastSeq, retained, res.IDMap); err != nil {
		return s.done(res, start, err)
	}

	s.log.Info(ctx, "sync finished", "replayed", res.Replayed, "retained", res.Retained, "dropped", res.Dropped)
	return s.done(res, start, nil)
}

func (s *SyncService[T]) done(res SyncResult, start time.Time, err error) (SyncResult, error) {
	res.Duration = s.now().Sub(start)
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	s.metrics.ObservePass(s.domain.Name, outcome, res.Duration)
	s.finish(err)
	return res, err
}

// replay sends op to the server. A successful create records the server id
// in idMap.
func (s *SyncService[T]) replay(ctx context.Context, op models.SyncOperation, idMap map[string]string) error {
	switch op.Type {
	case models.OpCreate:
		created, err := s.remote.Create(ctx, op.Data)
		if err != nil {
			return err
		}
		if id := recordID(created); id != "" {
			idMap[op.LocalID] = id
		} else {
			s.log.Warn(ctx, "server returned no id for created entity", "id", op.LocalID)
		}
		return nil
	case models.OpUpdate:
		_, err := s.remote.Update(ctx, op.ID, op.Data)
		return err
	case models.OpDelete:
		return s.remote.Delete(ctx, op.ID)
	case models.OpComplete:
		action := op.Action
		if action == "" {
			action = string(models.OpComplete)
		}
		return s.remote.Action(ctx, op.ID, action)
	}
	return fmt.Errorf("unknown operation type %q", op.Type)
}

// commit replaces cache and queue in one transaction. Queue entries with a
// seq above lastSeq were added while the pass ran; they are kept after
// retained and re-applied onto snapshot together with it.
func (s *SyncService[T]) commit(ctx context.Context, snapshot []T, lastSeq int64, retained []models.SyncOperation, idMap map[string]string) error {
	var queued int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx kv.Store) error {
		q := s.queue.Bind(tx)
		current, err := q.Drain(ctx)
		if err != nil {
			return err
		}

		next := make([]models.SyncOperation, 0, len(retained)+len(current))
		next = append(next, retained...)
		for _, op := range current {
			if op.Seq > lastSeq {
				next = append(next, remap(op, idMap))
			}
		}

		items := make([]T, 0, len(snapshot)+len(next))
		for _, rec := range snapshot {
			if isNil(rec) {
				continue
			}
			rec.Metadata().MarkStatus(models.SyncStatusSynced)
			items = append(items, rec)
		}
		for _, op := range next {
			status := models.SyncStatusPending
			if op.LastError != "" {
				status = models.SyncStatusFailed
			}
			var aerr error
			items, _, aerr = s.domain.apply(items, op, status)
			if aerr != nil {
				s.log.Debug(ctx, "queued operation not reflected in cache", "op", op.Type, "id", op.Target(), "error", aerr)
			}
		}

		if err := q.Replace(ctx, next); err != nil {
			return err
		}
		queued = len(next)
		return kv.Save(ctx, tx, s.domain.CacheKey(), items)
	})
	if err != nil {
		return fmt.Errorf("commit %s: %w", s.domain.Name, err)
	}
	s.metrics.SetQueueLength(s.domain.Name, queued)
	return nil
}

// remap rewrites temporary ids that the server has replaced.
func remap(op models.SyncOperation, idMap map[string]string) models.SyncOperation {
	if id, ok := idMap[op.ID]; ok {
		op.ID = id
	}
	return op
}

func recordID[T models.Record](rec T) string {
	if isNil(rec) {
		return ""
	}
	return string(rec.Metadata().ID)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
