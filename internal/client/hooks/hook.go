// Package hooks binds the local entity services, the sync service and the
// connectivity monitor of one domain into the contract a view layer uses:
// reads come from the cache at once, writes go to the cache and queue
// synchronously, and reconciliation runs in the background.
package hooks

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/models"
	"github.com/dmitrijs2005/lifekeeper/internal/client/services"
	"github.com/dmitrijs2005/lifekeeper/internal/common"
	"github.com/dmitrijs2005/lifekeeper/internal/logging"
)

// DefaultDebounce coalesces quick successive mutations into one sync pass.
const DefaultDebounce = time.Second

// Connectivity is the network status signal. connectivity.Monitor
// implements it.
type Connectivity interface {
	Online() bool
	Subscribe(fn func(online bool)) func()
}

// EventKind tells listeners what happened.
type EventKind string

const (
	// EventChanged follows a local mutation.
	EventChanged EventKind = "changed"
	// EventSynced follows a completed sync pass or pull.
	EventSynced EventKind = "synced"
	// EventSyncFailed follows a pass that left the queue in place.
	EventSyncFailed EventKind = "sync_failed"
)

// Event is delivered to listeners. Listeners treat it as a cache
// invalidation signal and re-read through Query.
type Event struct {
	Domain string
	Kind   EventKind
	Result services.SyncResult
	Err    error
}

type Options struct {
	Debounce time.Duration
	Logger   logging.Logger
}

// Hook is safe for concurrent use. Background syncs started by the hook run
// on a context detached from the caller's; Close waits for them.
type Hook[T models.Record, C services.Validator, U any] struct {
	entities *services.EntityService[T, C, U]
	syncer   *services.SyncService[T]
	net      Connectivity
	debounce time.Duration
	log      logging.Logger
	base     context.Context

	mu          sync.Mutex
	closed      bool
	timer       *time.Timer
	listeners   map[int]func(Event)
	nextID      int
	unsubscribe func()

	wg sync.WaitGroup
}

func New[T models.Record, C services.Validator, U any](
	ctx context.Context,
	entities *services.EntityService[T, C, U],
	syncer *services.SyncService[T],
	net Connectivity,
	opts Options,
) *Hook[T, C, U] {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	h := &Hook[T, C, U]{
		entities:  entities,
		syncer:    syncer,
		net:       net,
		debounce:  debounce,
		log:       log.With("domain", entities.Domain().Name),
		base:      context.WithoutCancel(ctx),
		listeners: map[int]func(Event){},
	}

	h.unsubscribe = net.Subscribe(func(online bool) {
		if online {
			h.spawn(h.flush)
		}
	})

	return h
}

func (h *Hook[T, C, U]) Name() string { return h.entities.Domain().Name }

func (h *Hook[T, C, U]) Domain() services.Domain[T] { return h.entities.Domain() }

// Query returns the cached list. When online it also starts a background
// refresh; listeners hear about the result.
func (h *Hook[T, C, U]) Query(ctx context.Context, f services.Filter) ([]T, error) {
	items, err := h.entities.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if h.net.Online() {
		h.spawn(h.refresh)
	}
	return items, nil
}

func (h *Hook[T, C, U]) Get(ctx context.Context, id string) (T, error) {
	return h.entities.Get(ctx, id)
}

func (h *Hook[T, C, U]) Create(ctx context.Context, dto C) (T, error) {
	rec, err := h.entities.Create(ctx, dto)
	if err != nil {
		return rec, err
	}
	h.changed()
	return rec, nil
}

func (h *Hook[T, C, U]) Update(ctx context.Context, id string, dto U) (T, error) {
	rec, err := h.entities.Update(ctx, id, dto)
	if err != nil {
		return rec, err
	}
	h.changed()
	return rec, nil
}

func (h *Hook[T, C, U]) Delete(ctx context.Context, id string) error {
	if err := h.entities.Delete(ctx, id); err != nil {
		return err
	}
	h.changed()
	return nil
}

// Do runs a domain action such as "complete".
func (h *Hook[T, C, U]) Do(ctx context.Context, id, action string) (T, error) {
	rec, err := h.entities.Do(ctx, id, action)
	if err != nil {
		return rec, err
	}
	h.changed()
	return rec, nil
}

// Sync reconciles now. With an empty queue it pulls the server list instead.
func (h *Hook[T, C, U]) Sync(ctx context.Context) (services.SyncResult, error) {
	if !h.net.Online() {
		return services.SyncResult{}, common.ErrOffline
	}
	return h.run(ctx)
}

func (h *Hook[T, C, U]) Pending(ctx context.Context) (int, error) {
	return h.entities.Pending(ctx)
}

func (h *Hook[T, C, U]) State() services.State { return h.syncer.State() }

func (h *Hook[T, C, U]) LastSync() time.Time { return h.syncer.LastSync() }

// Subscribe registers fn and returns a function removing it.
func (h *Hook[T, C, U]) Subscribe(fn func(Event)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Close stops the debounce timer and the connectivity subscription, drops
// listeners and waits for background syncs already running.
func (h *Hook[T, C, U]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	if h.timer != nil {
		h.timer.Stop()
	}
	h.listeners = map[int]func(Event){}
	unsubscribe := h.unsubscribe
	h.mu.Unlock()

	unsubscribe()
	h.wg.Wait()
}

func (h *Hook[T, C, U]) changed() {
	h.emit(Event{Domain: h.Name(), Kind: EventChanged})
	if h.net.Online() {
		h.schedule()
	}
}

func (h *Hook[T, C, U]) schedule() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if h.timer == nil {
		h.timer = time.AfterFunc(h.debounce, func() { h.spawn(h.flush) })
		return
	}
	h.timer.Reset(h.debounce)
}

func (h *Hook[T, C, U]) spawn(fn func(ctx context.Context)) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		fn(h.base)
	}()
}

// flush sends the queue after a mutation or when the network returns.
func (h *Hook[T, C, U]) flush(ctx context.Context) {
	res, err := h.syncer.SyncChanges(ctx)
	h.report(ctx, res, err)
}

func (h *Hook[T, C, U]) refresh(ctx context.Context) {
	_, _ = h.run(ctx)
}

func (h *Hook[T, C, U]) run(ctx context.Context) (services.SyncResult, error) {
	pending, err := h.entities.Pending(ctx)
	if err != nil {
		return services.SyncResult{}, err
	}

	var res services.SyncResult
	if pending == 0 {
		err = h.syncer.Pull(ctx)
	} else {
		res, err = h.syncer.SyncChanges(ctx)
	}
	h.report(ctx, res, err)
	return res, err
}

func (h *Hook[T, C, U]) report(ctx context.Context, res services.SyncResult, err error) {
	if err != nil {
		h.log.Warn(ctx, "background sync failed", "error", err)
		h.emit(Event{Domain: h.Name(), Kind: EventSyncFailed, Result: res, Err: err})
		return
	}
	h.emit(Event{Domain: h.Name(), Kind: EventSynced, Result: res})
}

func (h *Hook[T, C, U]) emit(e Event) {
	h.mu.Lock()
	fns := make([]func(Event), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
