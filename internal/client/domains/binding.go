package domains

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/lifekeeper/internal/client/hooks"
	"github.com/dmitrijs2005/lifekeeper/internal/client/models"
	"github.com/dmitrijs2005/lifekeeper/internal/client/services"
	"github.com/dmitrijs2005/lifekeeper/internal/common"
)

// Binding is the type-erased face of one domain hook. The terminal client
// and batch commands work with bindings only.
type Binding interface {
	Name() string
	Fields() []Field
	Actions() []string

	List(ctx context.Context, search string) ([]Row, error)
	Get(ctx context.Context, id string) (Row, error)
	Create(ctx context.Context, body json.RawMessage) (Row, error)
	Update(ctx context.Context, id string, body json.RawMessage) (Row, error)
	Delete(ctx context.Context, id string) error
	Do(ctx context.Context, id, action string) (Row, error)

	Sync(ctx context.Context) (services.SyncResult, error)
	Pending(ctx context.Context) (int, error)
	State() services.State
	Subscribe(fn func(hooks.Event)) func()
	Close()
}

type binding[T models.Record, C services.Validator, U any] struct {
	hook   *hooks.Hook[T, C, U]
	row    func(T) Row
	fields []Field
}

func newBinding[T models.Record, C services.Validator, U any](h *hooks.Hook[T, C, U], row func(T) Row) *binding[T, C, U] {
	return &binding[T, C, U]{hook: h, row: row, fields: fieldsByDomain[h.Name()]}
}

func (b *binding[T, C, U]) Name() string    { return b.hook.Name() }
func (b *binding[T, C, U]) Fields() []Field { return b.fields }

func (b *binding[T, C, U]) Actions() []string {
	var out []string
	for _, a := range []string{ActionComplete} {
		if b.hook.Domain().HasAction(a) {
			out = append(out, a)
		}
	}
	return out
}

func (b *binding[T, C, U]) List(ctx context.Context, search string) ([]Row, error) {
	items, err := b.hook.Query(ctx, services.Filter{Search: search})
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, b.row(it))
	}
	return rows, nil
}

func (b *binding[T, C, U]) Get(ctx context.Context, id string) (Row, error) {
	rec, err := b.hook.Get(ctx, id)
	if err != nil {
		return Row{}, err
	}
	return b.row(rec), nil
}

func (b *binding[T, C, U]) Create(ctx context.Context, body json.RawMessage) (Row, error) {
	var dto C
	if err := json.Unmarshal(body, &dto); err != nil {
		return Row{}, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	rec, err := b.hook.Create(ctx, dto)
	if err != nil {
		return Row{}, err
	}
	return b.row(rec), nil
}

func (b *binding[T, C, U]) Update(ctx context.Context, id string, body json.RawMessage) (Row, error) {
	var dto U
	if err := json.Unmarshal(body, &dto); err != nil {
		return Row{}, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	rec, err := b.hook.Update(ctx, id, dto)
	if err != nil {
		return Row{}, err
	}
	return b.row(rec), nil
}

func (b *binding[T, C, U]) Delete(ctx context.Context, id string) error {
	return b.hook.Delete(ctx, id)
}

func (b *binding[T, C, U]) Do(ctx context.Context, id, action string) (Row, error) {
	if !slices.Contains(b.Actions(), action) {
		return Row{}, fmt.Errorf("%w: %s has no %q action", common.ErrValidation, b.Name(), action)
	}
	rec, err := b.hook.Do(ctx, id, action)
	if err != nil {
		return Row{}, err
	}
	return b.row(rec), nil
}

func (b *binding[T, C, U]) Sync(ctx context.Context) (services.SyncResult, error) {
	return b.hook.Sync(ctx)
}

func (b *binding[T, C, U]) Pending(ctx context.Context) (int, error) { return b.hook.Pending(ctx) }
func (b *binding[T, C, U]) State() services.State                    { return b.hook.State() }
func (b *binding[T, C, U]) Close()                                   { b.hook.Close() }

func (b *binding[T, C, U]) Subscribe(fn func(hooks.Event)) func() {
	return b.hook.Subscribe(fn)
}
