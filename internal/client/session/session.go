// Package session keeps the credentials of the signed-in user: bearer tokens
// in an encrypted namespace of the local store, and the salt/verifier pair
// that allows offline login.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/client"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/lifekeeper/internal/logging"
)

const (
	// TokenPrefix namespaces encrypted token entries.
	TokenPrefix = "session_"
	// AuthPrefix namespaces offline login data.
	AuthPrefix = "auth_"

	accessKey  = "access_token"
	refreshKey = "refresh_token"

	usernameKey = AuthPrefix + "username"
	saltKey     = AuthPrefix + "salt"
	verifierKey = AuthPrefix + "verifier"
	// ownerKey survives logout so a different user's login can be detected.
	ownerKey = AuthPrefix + "owner"
)

// OfflineAuth is what offline login checks a password against.
type OfflineAuth struct {
	Username string
	Salt     []byte
	Verifier []byte
}

// Manager implements client.TokenSource. While locked it reports empty
// tokens, so requests go out unauthenticated and the server answers 401.
type Manager struct {
	store  kv.Store
	tokens *kv.EncryptedStore
	log    logging.Logger
}

var _ client.TokenSource = (*Manager)(nil)

func NewManager(store kv.Store, log logging.Logger) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{
		store:  store,
		tokens: kv.NewEncryptedStore(store, TokenPrefix),
		log:    log,
	}
}

// Unlock makes tokens readable with the master key derived at login.
func (m *Manager) Unlock(masterKey []byte) error {
	return m.tokens.Unlock(masterKey)
}

func (m *Manager) Lock() { m.tokens.Lock() }

func (m *Manager) Locked() bool { return m.tokens.Locked() }

func (m *Manager) Tokens(ctx context.Context) (client.Tokens, error) {
	if m.tokens.Locked() {
		return client.Tokens{}, nil
	}
	var t client.Tokens
	err := m.tokens.WithinTx(ctx, func(ctx context.Context, tx kv.Store) error {
		access, err := tx.Get(ctx, accessKey)
		if err != nil {
			return err
		}
		refresh, err := tx.Get(ctx, refreshKey)
		if err != nil {
			return err
		}
		t = client.Tokens{Access: string(access), Refresh: string(refresh)}
		return nil
	})
	if err != nil {
		return client.Tokens{}, fmt.Errorf("read tokens: %w", err)
	}
	return t, nil
}

func (m *Manager) SaveTokens(ctx context.Context, t client.Tokens) error {
	return m.tokens.WithinTx(ctx, func(ctx context.Context, tx kv.Store) error {
		if err := tx.Set(ctx, accessKey, []byte(t.Access)); err != nil {
			return err
		}
		return tx.Set(ctx, refreshKey, []byte(t.Refresh))
	})
}

func (m *Manager) ClearTokens(ctx context.Context) error {
	return m.tokens.Clear(ctx)
}

// ExpiresAt returns the exp claim of the stored access token.
func (m *Manager) ExpiresAt(ctx context.Context) (time.Time, bool, error) {
	t, err := m.Tokens(ctx)
	if err != nil || t.Access == "" {
		return time.Time{}, false, err
	}
	exp, ok := client.TokenExpiry(t.Access)
	return exp, ok, nil
}

// LoggedIn reports whether an access token is available.
func (m *Manager) LoggedIn(ctx context.Context) bool {
	t, err := m.Tokens(ctx)
	return err == nil && t.Access != ""
}

// SaveOfflineAuth stores username, salt and verifier together.
func (m *Manager) SaveOfflineAuth(ctx context.Context, a OfflineAuth) error {
	return m.store.WithinTx(ctx, func(ctx context.Context, tx kv.Store) error {
		if err := tx.Set(ctx, usernameKey, []byte(a.Username)); err != nil {
			return err
		}
		if err := tx.Set(ctx, saltKey, a.Salt); err != nil {
			return err
		}
		if err := tx.Set(ctx, ownerKey, []byte(a.Username)); err != nil {
			return err
		}
		return tx.Set(ctx, verifierKey, a.Verifier)
	})
}

// Owner returns the user whose data the local store holds, or "".
func (m *Manager) Owner(ctx context.Context) (string, error) {
	v, err := m.store.Get(ctx, ownerKey)
	return string(v), err
}

// LoadOfflineAuth returns ok=false if any part is missing.
func (m *Manager) LoadOfflineAuth(ctx context.Context) (OfflineAuth, bool, error) {
	var (
		a  OfflineAuth
		ok bool
	)
	err := m.store.WithinTx(ctx, func(ctx context.Context, tx kv.Store) error {
		username, err := tx.Get(ctx, usernameKey)
		if err != nil {
			return err
		}
		salt, err := tx.Get(ctx, saltKey)
		if err != nil {
			return err
		}
		verifier, err := tx.Get(ctx, verifierKey)
		if err != nil {
			return err
		}
		a = OfflineAuth{Username: string(username), Salt: salt, Verifier: verifier}
		ok = len(username) > 0 && len(salt) > 0 && len(verifier) > 0
		return nil
	})
	return a, ok, err
}

func (m *Manager) ClearOfflineAuth(ctx context.Context) error {
	return m.store.WithinTx(ctx, func(ctx context.Context, tx kv.Store) error {
		for _, k := range []string{usernameKey, saltKey, verifierKey} {
			if err := tx.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	})
}
