package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/models"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/queue"
	"github.com/dmitrijs2005/lifekeeper/internal/common"
	"github.com/dmitrijs2005/lifekeeper/internal/logging"
)

// Validator is implemented by create DTOs.
type Validator interface {
	Validate() error
}

// Filter narrows List results.
type Filter struct {
	// Search is matched case-insensitively as a substring of the domain's
	// search fields.
	Search string
}

// EntityService is the local-first CRUD of one domain. Every mutation
// updates the cached list and appends a SyncOperation in a single store
// transaction; nothing here talks to the server.
type EntityService[T models.Record, C Validator, U any] struct {
	domain Domain[T]
	store  kv.Store
	queue  *queue.Queue
	log    logging.Logger

	now   func() time.Time
	newID func() string
}

func NewEntityService[T models.Record, C Validator, U any](d Domain[T], store kv.Store, log logging.Logger) *EntityService[T, C, U] {
	if log == nil {
		log = logging.NewNop()
	}
	log = log.With("domain", d.Name)
	return &EntityService[T, C, U]{
		domain: d,
		store:  store,
		queue:  queue.New(store, d.Name, log),
		log:    log,
		now:    time.Now,
		newID:  models.NewTemporaryID,
	}
}

func (s *EntityService[T, C, U]) Domain() Domain[T] { return s.domain }

// List returns cached entities matching f. Tombstoned entities are skipped.
func (s *EntityService[T, C, U]) List(ctx context.Context, f Filter) ([]T, error) {
	items, _, err := kv.Load[[]T](ctx, s.store, s.log, s.domain.CacheKey())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.domain.Name, err)
	}

	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.Metadata().IsDeleted {
			continue
		}
		if s.domain.matches(it, f.Search) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *EntityService[T, C, U]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	items, _, err := kv.Load[[]T](ctx, s.store, s.log, s.domain.CacheKey())
	if err != nil {
		return zero, fmt.Errorf("load %s: %w", s.domain.Name, err)
	}
	i := s.domain.index(items, id)
	if i < 0 {
		return zero, fmt.Errorf("%s %s: %w", s.domain.Name, id, common.ErrorNotFound)
	}
	return items[i], nil
}

// Create stores a new entity under a temporary id and queues its creation.
func (s *EntityService[T, C, U]) Create(ctx context.Context, dto C) (T, error) {
	var zero T
	if err := dto.Validate(); err != nil {
		return zero, err
	}
	data, err := payload(dto)
	if err != nil {
		return zero, err
	}
	return s.mutate(ctx, models.SyncOperation{Type: models.OpCreate, LocalID: s.newID(), Data: data})
}

// Update merges the non-empty fields of dto into the cached entity.
func (s *EntityService[T, C, U]) Update(ctx context.Context, id string, dto U) (T, error) {
	data, err := payload(dto)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.mutate(ctx, models.SyncOperation{Type: models.OpUpdate, ID: id, Data: data})
}

// Delete removes the entity, or tombstones it in domains that sync
// deletions. Deleting an unknown id is not an error and is still queued.
func (s *EntityService[T, C, U]) Delete(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, models.SyncOperation{Type: models.OpDelete, ID: id})
	return err
}

// Do runs a domain action such as "complete".
func (s *EntityService[T, C, U]) Do(ctx context.Context, id, action string) (T, error) {
	return s.mutate(ctx, models.SyncOperation{Type: models.OpComplete, ID: id, Action: action})
}

// Pending returns the number of queued operations.
func (s *EntityService[T, C, U]) Pending(ctx context.Context) (int, error) {
	return s.queue.Len(ctx)
}

func (s *EntityService[T, C, U]) mutate(ctx context.Context, op models.SyncOperation) (T, error) {
	var out T
	op.EnqueuedAt = s.now().UTC()

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx kv.Store) error {
		items, _, err := kv.Load[[]T](ctx, tx, s.log, s.domain.CacheKey())
		if err != nil {
			return err
		}
		next, rec, err := s.domain.apply(items, op, models.SyncStatusPending)
		if err != nil {
			return err
		}
		if _, err := s.queue.Bind(tx).Enqueue(ctx, op); err != nil {
			return err
		}
		if err := kv.Save(ctx, tx, s.domain.CacheKey(), next); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	s.log.Debug(ctx, "local mutation queued", "op", op.Type, "id", op.Target())
	return out, nil
}

// payload encodes a DTO for the queue with server-managed fields removed.
func payload(dto any) (json.RawMessage, error) {
	raw, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return models.StripServerFields(raw)
}
