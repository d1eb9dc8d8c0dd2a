package services

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/models"
	"github.com/dmitrijs2005/lifekeeper/internal/common"
)

// CachePrefix prefixes the store key of every domain's entity list.
const CachePrefix = "offline_"

// Domain describes one entity type to the generic services.
type Domain[T models.Record] struct {
	// Name identifies the domain in store keys, logs and metrics.
	Name string

	// Tombstones makes delete mark is_deleted instead of removing the entity.
	Tombstones bool

	// NewRecord returns an empty entity, e.g. func() *models.Task { return new(models.Task) }.
	NewRecord func() T

	// Search returns the fields matched by Filter.Search.
	Search func(T) []string

	// Actions are domain operations carrying only an id, keyed by endpoint name.
	Actions map[string]func(T, time.Time)
}

// CacheKey is the store key of the domain's entity list.
func (d Domain[T]) CacheKey() string { return CachePrefix + d.Name }

// HasAction reports whether action is registered.
func (d Domain[T]) HasAction(action string) bool {
	_, ok := d.Actions[action]
	return ok
}

func (d Domain[T]) index(items []T, id string) int {
	return slices.IndexFunc(items, func(it T) bool {
		m := it.Metadata()
		return string(m.ID) == id && !m.IsDeleted
	})
}

// apply folds op into items. Local mutations and the rebase after a sync
// both go through it, so the cache always looks like "server state plus
// queued operations". The entity touched by op is returned (zero for a
// delete of an unknown id).
func (d Domain[T]) apply(items []T, op models.SyncOperation, status models.SyncStatus) ([]T, T, error) {
	var zero T
	at := op.EnqueuedAt

	switch op.Type {
	case models.OpCreate:
		rec := d.NewRecord()
		if len(op.Data) > 0 {
			if err := json.Unmarshal(op.Data, rec); err != nil {
				return items, zero, fmt.Errorf("decode create payload: %w", err)
			}
		}
		m := rec.Metadata()
		m.ID = models.EntityID(op.LocalID)
		m.CreatedAt = at
		m.UpdatedAt = at
		m.IsDeleted = false
		m.MarkStatus(status)
		if i := d.index(items, op.LocalID); i >= 0 {
			items[i] = rec
			return items, rec, nil
		}
		return append(items, rec), rec, nil

	case models.OpUpdate:
		i := d.index(items, op.ID)
		if i < 0 {
			return items, zero, fmt.Errorf("%s %s: %w", d.Name, op.ID, common.ErrorNotFound)
		}
		rec := items[i]
		if len(op.Data) > 0 {
			if err := json.Unmarshal(op.Data, rec); err != nil {
				return items, zero, fmt.Errorf("decode update payload: %w", err)
			}
		}
		rec.Metadata().ID = models.EntityID(op.ID)
		touch(rec, at, status)
		return items, rec, nil

	case models.OpDelete:
		i := d.index(items, op.ID)
		if i < 0 {
			return items, zero, nil
		}
		rec := items[i]
		if d.Tombstones {
			rec.Metadata().IsDeleted = true
			touch(rec, at, status)
			return items, rec, nil
		}
		return slices.Delete(items, i, i+1), rec, nil

	case models.OpComplete:
		fn, ok := d.Actions[op.Action]
		if !ok {
			return items, zero, fmt.Errorf("%w: %s has no action %q", common.ErrValidation, d.Name, op.Action)
		}
		i := d.index(items, op.ID)
		if i < 0 {
			return items, zero, fmt.Errorf("%s %s: %w", d.Name, op.ID, common.ErrorNotFound)
		}
		fn(items[i], at)
		touch(items[i], at, status)
		return items, items[i], nil
	}

	return items, zero, fmt.Errorf("%w: unknown operation type %q", common.ErrValidation, op.Type)
}

func touch(rec models.Record, at time.Time, status models.SyncStatus) {
	m := rec.Metadata()
	m.UpdatedAt = at
	m.MarkStatus(status)
}

// matches implements the case-insensitive substring filter.
func (d Domain[T]) matches(rec T, search string) bool {
	if search == "" {
		return true
	}
	if d.Search == nil {
		return false
	}
	needle := strings.ToLower(search)
	for _, field := range d.Search(rec) {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
