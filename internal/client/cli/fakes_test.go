package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/lifekeeper/internal/client/config"
	"github.com/dmitrijs2005/lifekeeper/internal/client/domains"
	"github.com/dmitrijs2005/lifekeeper/internal/client/hooks"
	"github.com/dmitrijs2005/lifekeeper/internal/client/models"
	"github.com/dmitrijs2005/lifekeeper/internal/client/services"
	"github.com/dmitrijs2005/lifekeeper/internal/common"
	"github.com/dmitrijs2005/lifekeeper/internal/logging"
)

type fakeAuth struct {
	regUser, onlineUser, offlineUser string
	regPass                          []byte

	regErr, onlineErr, offlineErr, logoutErr error

	logoutCalled bool
}

func (f *fakeAuth) Register(_ context.Context, user string, pass []byte) error {
	f.regUser, f.regPass = user, append([]byte(nil), pass...)
	return f.regErr
}

func (f *fakeAuth) OnlineLogin(_ context.Context, user string, _ []byte) error {
	f.onlineUser = user
	return f.onlineErr
}

func (f *fakeAuth) OfflineLogin(_ context.Context, user string, _ []byte) error {
	f.offlineUser = user
	return f.offlineErr
}

func (f *fakeAuth) Ping(context.Context) error { return nil }

func (f *fakeAuth) Logout(context.Context) error {
	f.logoutCalled = true
	return f.logoutErr
}

type fakeNet struct {
	online  bool
	checked bool
}

func (n *fakeNet) Online() bool { return n.online }

func (n *fakeNet) Check(context.Context) bool {
	n.checked = true
	return n.online
}

func (n *fakeNet) Run(ctx context.Context) { <-ctx.Done() }

// fakeBinding keeps rows in memory and records calls.
type fakeBinding struct {
	name    string
	fields  []domains.Field
	rows    map[string]domains.Row
	bodies  []json.RawMessage
	deleted []string
	actions []string
	seq     int
	pending int
}

func newFakeBinding(name string) *fakeBinding {
	return &fakeBinding{
		name:   name,
		fields: []domains.Field{{Key: "title", Label: "Title"}, {Key: "priority", Label: "Priority", Kind: domains.KindInt}},
		rows:   map[string]domains.Row{},
	}
}

func (b *fakeBinding) Name() string            { return b.name }
func (b *fakeBinding) Fields() []domains.Field { return b.fields }
func (b *fakeBinding) Actions() []string       { return []string{domains.ActionComplete} }

func (b *fakeBinding) List(_ context.Context, search string) ([]domains.Row, error) {
	var out []domains.Row
	for _, r := range b.rows {
		if strings.Contains(r.Title, search) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *fakeBinding) Get(_ context.Context, id string) (domains.Row, error) {
	r, ok := b.rows[id]
	if !ok {
		return domains.Row{}, common.ErrorNotFound
	}
	return r, nil
}

func (b *fakeBinding) Create(_ context.Context, body json.RawMessage) (domains.Row, error) {
	b.bodies = append(b.bodies, body)
	var v struct {
		Title string `json:"title"`
	}
	_ = json.Unmarshal(body, &v)
	b.seq++
	r := domains.Row{ID: fmt.Sprintf("temp-%d", b.seq), Title: v.Title, Status: models.SyncStatusPending}
	b.rows[r.ID] = r
	return r, nil
}

func (b *fakeBinding) Update(_ context.Context, id string, body json.RawMessage) (domains.Row, error) {
	r, ok := b.rows[id]
	if !ok {
		return domains.Row{}, common.ErrorNotFound
	}
	b.bodies = append(b.bodies, body)
	r.Status = models.SyncStatusPending
	b.rows[id] = r
	return r, nil
}

func (b *fakeBinding) Delete(_ context.Context, id string) error {
	if _, ok := b.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(b.rows, id)
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *fakeBinding) Do(_ context.Context, id, action string) (domains.Row, error) {
	r, ok := b.rows[id]
	if !ok {
		return domains.Row{}, common.ErrorNotFound
	}
	b.actions = append(b.actions, action+":"+id)
	return r, nil
}

func (b *fakeBinding) Sync(context.Context) (services.SyncResult, error) {
	return services.SyncResult{}, nil
}

func (b *fakeBinding) Pending(context.Context) (int, error) { return b.pending, nil }
func (b *fakeBinding) State() services.State                { return services.StateIdle }
func (b *fakeBinding) Subscribe(func(hooks.Event)) func()   { return func() {} }
func (b *fakeBinding) Close()                               {}

type fakeRegistry struct {
	bindings map[string]*fakeBinding
	results  map[string]services.SyncResult
	syncErr  error
	synced   int
	closed   bool
}

func newFakeRegistry(names ...string) *fakeRegistry {
	r := &fakeRegistry{bindings: map[string]*fakeBinding{}}
	for _, n := range names {
		r.bindings[n] = newFakeBinding(n)
	}
	return r
}

func (r *fakeRegistry) Names() []string {
	var out []string
	for _, n := range []string{domains.Tasks, domains.Habits, domains.Projects} {
		if _, ok := r.bindings[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (r *fakeRegistry) Get(name string) (domains.Binding, error) {
	b, ok := r.bindings[name]
	if !ok {
		return nil, fmt.Errorf("unknown domain %q", name)
	}
	return b, nil
}

func (r *fakeRegistry) SyncAll(context.Context) (map[string]services.SyncResult, error) {
	r.synced++
	return r.results, r.syncErr
}

func (r *fakeRegistry) Pending(context.Context) (map[string]int, error) {
	out := map[string]int{}
	for n, b := range r.bindings {
		out[n] = b.pending
	}
	return out, nil
}

func (r *fakeRegistry) Close() { r.closed = true }

type fakeBackups struct {
	keys     []string
	restored string
	err      error
}

func (f *fakeBackups) Backup(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key := fmt.Sprintf("snap-%d.json", len(f.keys))
	f.keys = append([]string{key}, f.keys...)
	return key, nil
}

func (f *fakeBackups) Restore(_ context.Context, key string) (int, error) {
	f.restored = key
	return 3, f.err
}

func (f *fakeBackups) List(context.Context) ([]string, error) { return f.keys, f.err }

type testApp struct {
	*App
	auth *fakeAuth
	net  *fakeNet
	reg  *fakeRegistry
	out  *bytes.Buffer
}

// newTestApp builds an App over fakes that reads input line by line.
func newTestApp(t *testing.T, input string) *testApp {
	t.Helper()
	out := &bytes.Buffer{}
	ta := &testApp{
		auth: &fakeAuth{},
		net:  &fakeNet{online: true},
		reg:  newFakeRegistry(domains.Tasks, domains.Habits),
		out:  out,
	}
	cfg := &config.Config{}
	cfg.LoadDefaults()
	ta.App = &App{
		config:      cfg,
		authService: ta.auth,
		domains:     ta.reg,
		net:         ta.net,
		log:         logging.NewNop(),
		reader:      bufio.NewReader(strings.NewReader(input)),
		out:         out,
	}
	return ta
}

func stubInputs(t *testing.T, username string, password []byte) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(*bufio.Reader, string, io.Writer) (string, error) { return username, nil }
	getPassword = func(io.Writer) ([]byte, error) { return password, nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}
