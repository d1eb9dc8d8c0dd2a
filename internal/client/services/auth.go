package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/dmitrijs2005/lifekeeper/internal/client/client"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/lifekeeper/internal/client/session"
	"github.com/dmitrijs2005/lifekeeper/internal/common"
	"github.com/dmitrijs2005/lifekeeper/internal/cryptox"
	"github.com/dmitrijs2005/lifekeeper/internal/logging"
)

const saltSize = 32

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - OnlineLogin: authenticate against the server, persist offline auth
//     data and tokens, unlock the session.
//   - OfflineLogin: verify the password against locally cached data and
//     unlock the session without the server.
//   - Register: create a new user on the server.
//   - Ping: check server liveness.
//   - Logout: drop tokens and offline auth data.
type AuthService interface {
	OnlineLogin(ctx context.Context, username string, password []byte) error
	OfflineLogin(ctx context.Context, username string, password []byte) error
	Register(ctx context.Context, username string, password []byte) error
	Ping(ctx context.Context) error
	Logout(ctx context.Context) error
}

type authService struct {
	client  client.Client
	session *session.Manager
	store   kv.Store
	log     logging.Logger
}

// NewAuthService wires the remote client and the session. store is the
// local store holding domain caches; it is wiped when a different user logs
// in on this device.
func NewAuthService(c client.Client, s *session.Manager, store kv.Store, log logging.Logger) AuthService {
	if log == nil {
		log = logging.NewNop()
	}
	return &authService{client: c, session: s, store: store, log: log}
}

// OfflineLogin derives the master key from the password and the salt stored
// at the last online login and compares its verifier in constant time.
func (a *authService) OfflineLogin(ctx context.Context, username string, password []byte) error {
	saved, ok, err := a.session.LoadOfflineAuth(ctx)
	if err != nil {
		return fmt.Errorf("load offline data: %w", err)
	}
	if !ok {
		return common.ErrLocalDataNotAvailable
	}
	if saved.Username != username {
		return client.ErrUnauthorized
	}

	masterKey := cryptox.DeriveMasterKey(password, saved.Salt)
	defer common.WipeByteArray(masterKey)

	if subtle.ConstantTimeCompare(saved.Verifier, cryptox.MakeVerifier(masterKey)) == 0 {
		return client.ErrUnauthorized
	}
	return a.session.Unlock(masterKey)
}

// OnlineLogin authenticates against the server, then stores the offline
// login data and the issued tokens under a key derived from the password.
func (a *authService) OnlineLogin(ctx context.Context, username string, password []byte) error {
	tokens, err := a.client.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login error: %w", err)
	}

	owner, err := a.session.Owner(ctx)
	if err != nil {
		return fmt.Errorf("load offline data: %w", err)
	}
	if owner != "" && owner != username {
		a.log.Info(ctx, "different user logged in, wiping local data")
		if err := a.store.Clear(ctx); err != nil {
			return fmt.Errorf("wipe local data: %w", err)
		}
	}

	saved, ok, err := a.session.LoadOfflineAuth(ctx)
	if err != nil {
		return fmt.Errorf("load offline data: %w", err)
	}
	salt := saved.Salt
	if !ok || saved.Username != username {
		salt = common.GenerateRandByteArray(saltSize)
	}

	masterKey := cryptox.DeriveMasterKey(password, salt)
	defer common.WipeByteArray(masterKey)
	verifier := cryptox.MakeVerifier(masterKey)

	if !ok || !bytes.Equal(saved.Verifier, verifier) {
		// Tokens sealed with the previous key are unreadable now.
		if err := a.session.ClearTokens(ctx); err != nil {
			return fmt.Errorf("clear tokens: %w", err)
		}
	}

	if err := a.session.SaveOfflineAuth(ctx, session.OfflineAuth{Username: username, Salt: salt, Verifier: verifier}); err != nil {
		return fmt.Errorf("offline data saving error: %w", err)
	}
	if err := a.session.Unlock(masterKey); err != nil {
		return err
	}
	if err := a.session.SaveTokens(ctx, tokens); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	return a.client.Register(ctx, username, password)
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Logout wipes tokens and offline auth data and locks the session. Domain
// caches and queues are kept so pending changes survive until the next login.
func (a *authService) Logout(ctx context.Context) error {
	if err := a.session.ClearTokens(ctx); err != nil {
		return err
	}
	if err := a.session.ClearOfflineAuth(ctx); err != nil {
		return err
	}
	a.session.Lock()
	return nil
}
