package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/client"
	"github.com/dmitrijs2005/lifekeeper/internal/client/models"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/lifekeeper/internal/common"
	"github.com/stretchr/testify/require"
)

type taskService = EntityService[*models.Task, models.TaskCreate, models.TaskUpdate]

func taskDomain() Domain[*models.Task] {
	return Domain[*models.Task]{
		Name:      "tasks",
		NewRecord: func() *models.Task { return new(models.Task) },
		Search:    func(t *models.Task) []string { return []string{t.Title, t.Description} },
		Actions:   map[string]func(*models.Task, time.Time){"complete": (*models.Task).Complete},
	}
}

func ptr[T any](v T) *T { return &v }

type call struct {
	Method string
	ID     string
	Body   string
}

// fakeRemote is an in-memory server for one collection. Hooks let tests
// inject failures or run code in the middle of a drain.
type fakeRemote struct {
	mu     sync.Mutex
	items  []*models.Task
	nextID int
	calls  []call

	listErr  error
	failures map[string]error // "PUT 1", "POST", "DELETE 3", ...
	onCall   func(c call)
}

func newFakeRemote(seed ...*models.Task) *fakeRemote {
	f := &fakeRemote{nextID: 100, failures: map[string]error{}}
	for _, t := range seed {
		f.items = append(f.items, clone(t))
	}
	return f
}

var _ client.Remote[*models.Task] = (*fakeRemote)(nil)

func clone(t *models.Task) *models.Task {
	raw, _ := json.Marshal(t)
	var out models.Task
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (f *fakeRemote) record(ctx context.Context, method, id string, body []byte) error {
	c := call{Method: method, ID: id, Body: string(body)}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	hook := f.onCall
	err := f.failures[method+" "+id]
	if err == nil && id == "" {
		err = f.failures[method]
	}
	f.mu.Unlock()
	if hook != nil {
		hook(c)
	}
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func (f *fakeRemote) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeRemote) List(ctx context.Context) ([]*models.Task, error) {
	if err := f.record(ctx, "GET", "", nil); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Task, 0, len(f.items))
	for _, t := range f.items {
		out = append(out, clone(t))
	}
	return out, nil
}

func (f *fakeRemote) find(id string) int {
	return slices.IndexFunc(f.items, func(t *models.Task) bool { return string(t.ID) == id })
}

func (f *fakeRemote) Get(ctx context.Context, id string) (*models.Task, error) {
	if err := f.record(ctx, "GET", id, nil); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(id); i >= 0 {
		return clone(f.items[i]), nil
	}
	return nil, notFound("get")
}

func (f *fakeRemote) Create(ctx context.Context, body json.RawMessage) (*models.Task, error) {
	if err := f.record(ctx, "POST", "", body); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var t models.Task
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, err
	}
	f.nextID++
	t.ID = models.EntityID(strconv.Itoa(f.nextID))
	t.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t.UpdatedAt = t.CreatedAt
	f.items = append(f.items, &t)
	return clone(&t), nil
}

func (f *fakeRemote) Update(ctx context.Context, id string, body json.RawMessage) (*models.Task, error) {
	if err := f.record(ctx, "PUT", id, body); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(id)
	if i < 0 {
		return nil, notFound("update")
	}
	if err := json.Unmarshal(body, f.items[i]); err != nil {
		return nil, err
	}
	return clone(f.items[i]), nil
}

func (f *fakeRemote) Delete(ctx context.Context, id string) error {
	if err := f.record(ctx, "DELETE", id, nil); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(id); i >= 0 {
		f.items = slices.Delete(f.items, i, i+1)
	}
	return nil
}

func (f *fakeRemote) Action(ctx context.Context, id, action string) error {
	if err := f.record(ctx, "POST", id+"/"+action, nil); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(id)
	if i < 0 {
		return notFound(action)
	}
	f.items[i].IsCompleted = true
	return nil
}

func notFound(op string) error {
	return &client.RemoteError{Op: op, StatusCode: http.StatusNotFound, Err: common.ErrorNotFound}
}

func unavailable(op string) error {
	return &client.RemoteError{Op: op, StatusCode: http.StatusServiceUnavailable, Err: client.ErrUnavailable}
}

func rejected(op string) error {
	return &client.RemoteError{Op: op, StatusCode: http.StatusBadRequest, Err: client.ErrRejected}
}

// fixture wires an entity service and a sync service over one store.
type fixture struct {
	store  *kv.MemoryStore
	remote *fakeRemote
	svc    *taskService
	sync   *SyncService[*models.Task]
	clock  time.Time
}

func newFixture(t *testing.T, seed ...*models.Task) *fixture {
	t.Helper()
	fx := &fixture{
		store:  kv.NewMemoryStore(),
		remote: newFakeRemote(seed...),
		clock:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	fx.svc = NewEntityService[*models.Task, models.TaskCreate, models.TaskUpdate](taskDomain(), fx.store, nil)
	fx.svc.now = func() time.Time { return fx.clock }
	n := 0
	fx.svc.newID = func() string {
		n++
		return fmt.Sprintf("%s%d", models.TemporaryIDPrefix, n)
	}
	fx.sync = NewSyncService[*models.Task](taskDomain(), fx.store, fx.remote, SyncOptions{MaxAttempts: 3})
	if len(seed) > 0 {
		require.NoError(t, fx.sync.Pull(context.Background()))
	}
	return fx
}

func (fx *fixture) queue(t *testing.T) []models.SyncOperation {
	t.Helper()
	ops, err := fx.sync.queue.Drain(context.Background())
	require.NoError(t, err)
	return ops
}

func (fx *fixture) cache(t *testing.T) []*models.Task {
	t.Helper()
	items, err := fx.svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	return items
}

func titles(items []*models.Task) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}
