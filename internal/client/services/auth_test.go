package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/lifekeeper/internal/client/client"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/lifekeeper/internal/client/session"
	"github.com/dmitrijs2005/lifekeeper/internal/common"
	"github.com/dmitrijs2005/lifekeeper/internal/cryptox"
	"github.com/stretchr/testify/require"
)

// fakeClient implements client.Client for AuthService unit tests.
type fakeClient struct {
	RegisterErr error
	LoginRet    client.Tokens
	LoginErr    error
	PingErr     error

	LastRegisterUser string
	LastRegisterPass []byte
	LastLoginUser    string
	LastLoginPass    []byte
}

func (f *fakeClient) Register(ctx context.Context, username string, password []byte) error {
	f.LastRegisterUser = username
	f.LastRegisterPass = append([]byte(nil), password...)
	return f.RegisterErr
}

func (f *fakeClient) Login(ctx context.Context, username string, password []byte) (client.Tokens, error) {
	f.LastLoginUser = username
	f.LastLoginPass = append([]byte(nil), password...)
	return f.LoginRet, f.LoginErr
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.PingErr }

type authFixture struct {
	store   *kv.MemoryStore
	session *session.Manager
	client  *fakeClient
	svc     AuthService
}

func newAuthFixture() *authFixture {
	store := kv.NewMemoryStore()
	fx := &authFixture{
		store:   store,
		session: session.NewManager(store, nil),
		client:  &fakeClient{LoginRet: client.Tokens{Access: "a1", Refresh: "r1"}},
	}
	fx.svc = NewAuthService(fx.client, fx.session, store, nil)
	return fx
}

func TestOfflineLogin_NoLocalData(t *testing.T) {
	fx := newAuthFixture()

	err := fx.svc.OfflineLogin(context.Background(), "user@example.com", []byte("pass"))
	require.ErrorIs(t, err, common.ErrLocalDataNotAvailable)
	require.True(t, fx.session.Locked())
}

func TestOfflineLogin_UsernameMismatch_Unauthorized(t *testing.T) {
	fx := newAuthFixture()
	require.NoError(t, fx.session.SaveOfflineAuth(context.Background(), session.OfflineAuth{
		Username: "other", Salt: []byte("salt"), Verifier: []byte{1, 2, 3},
	}))

	err := fx.svc.OfflineLogin(context.Background(), "user", []byte("p"))
	require.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestOfflineLogin_WrongPassword_Unauthorized(t *testing.T) {
	fx := newAuthFixture()
	salt := []byte("salty")
	mk := cryptox.DeriveMasterKey([]byte("correct"), salt)
	require.NoError(t, fx.session.SaveOfflineAuth(context.Background(), session.OfflineAuth{
		Username: "user", Salt: salt, Verifier: cryptox.MakeVerifier(mk),
	}))

	err := fx.svc.OfflineLogin(context.Background(), "user", []byte("wrong"))
	require.ErrorIs(t, err, client.ErrUnauthorized)
	require.True(t, fx.session.Locked())
}

func TestOnlineThenOfflineLogin_ReadsSameTokens(t *testing.T) {
	fx := newAuthFixture()
	ctx := context.Background()

	require.NoError(t, fx.svc.OnlineLogin(ctx, "user", []byte("pass")))
	require.Equal(t, "user", fx.client.LastLoginUser)
	require.Equal(t, []byte("pass"), fx.client.LastLoginPass)

	tok, err := fx.session.Tokens(ctx)
	require.NoError(t, err)
	require.Equal(t, client.Tokens{Access: "a1", Refresh: "r1"}, tok)

	fx.session.Lock()
	require.NoError(t, fx.svc.OfflineLogin(ctx, "user", []byte("pass")))

	tok, err = fx.session.Tokens(ctx)
	require.NoError(t, err)
	require.Equal(t, "a1", tok.Access)
}

func TestOnlineLogin_LoginError_Wrapped(t *testing.T) {
	fx := newAuthFixture()
	fx.client.LoginErr = errors.New("bad creds")

	err := fx.svc.OnlineLogin(context.Background(), "u", []byte("p"))
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "login error:"))
	require.True(t, fx.session.Locked())
}

func TestOnlineLogin_KeepsSaltForSameUser(t *testing.T) {
	fx := newAuthFixture()
	ctx := context.Background()

	require.NoError(t, fx.svc.OnlineLogin(ctx, "user", []byte("pass")))
	first, _, err := fx.session.LoadOfflineAuth(ctx)
	require.NoError(t, err)

	require.NoError(t, fx.svc.OnlineLogin(ctx, "user", []byte("pass")))
	second, _, err := fx.session.LoadOfflineAuth(ctx)
	require.NoError(t, err)

	require.Equal(t, first.Salt, second.Salt)
	require.Equal(t, first.Verifier, second.Verifier)
}

func TestOnlineLogin_DifferentUserWipesLocalData(t *testing.T) {
	fx := newAuthFixture()
	ctx := context.Background()

	require.NoError(t, fx.svc.OnlineLogin(ctx, "alice", []byte("pass")))
	require.NoError(t, fx.store.Set(ctx, "offline_tasks", []byte(`[{"id":"1"}]`)))
	require.NoError(t, fx.svc.Logout(ctx))

	require.NoError(t, fx.svc.OnlineLogin(ctx, "bob", []byte("pass")))

	v, err := fx.store.Get(ctx, "offline_tasks")
	require.NoError(t, err)
	require.Nil(t, v)
	owner, err := fx.session.Owner(ctx)
	require.NoError(t, err)
	require.Equal(t, "bob", owner)
}

func TestLogout_ClearsTokensAndOfflineData(t *testing.T) {
	fx := newAuthFixture()
	ctx := context.Background()
	require.NoError(t, fx.svc.OnlineLogin(ctx, "user", []byte("pass")))
	require.NoError(t, fx.store.Set(ctx, "offline_tasks", []byte(`[]`)))

	require.NoError(t, fx.svc.Logout(ctx))

	require.True(t, fx.session.Locked())
	_, ok, err := fx.session.LoadOfflineAuth(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	all, err := fx.store.List(ctx)
	require.NoError(t, err)
	for k := range all {
		require.False(t, strings.HasPrefix(k, session.TokenPrefix), k)
	}
	require.Contains(t, all, "offline_tasks")
}

func TestRegister_DelegatesToClient(t *testing.T) {
	fx := newAuthFixture()

	require.NoError(t, fx.svc.Register(context.Background(), "u", []byte("p")))
	require.Equal(t, "u", fx.client.LastRegisterUser)
	require.Equal(t, []byte("p"), fx.client.LastRegisterPass)

	fx.client.RegisterErr = errors.New("dup")
	require.Error(t, fx.svc.Register(context.Background(), "u", []byte("p")))
}

func TestPing_ErrorPropagates(t *testing.T) {
	fx := newAuthFixture()
	require.NoError(t, fx.svc.Ping(context.Background()))

	fx.client.PingErr = errors.New("down")
	require.Error(t, fx.svc.Ping(context.Background()))
}
