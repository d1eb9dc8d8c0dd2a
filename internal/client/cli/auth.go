package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/lifekeeper/internal/client/client"
	"github.com/dmitrijs2005/lifekeeper/internal/common"
)

// Input helpers are package variables so tests can replace them.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username and password and creates the account on
// the server. It does not log the user in.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Register(ctx, userName, password); err != nil {
		return err
	}

	a.printf("Registered %s, you can log in now\n", userName)
	return nil
}

// Login tries the server first and falls back to the locally cached
// verifier when the server cannot be reached.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	return a.login(ctx, userName, password)
}

func (a *App) login(ctx context.Context, userName string, password []byte) error {
	err := a.authService.OnlineLogin(ctx, userName, password)
	if errors.Is(err, client.ErrUnavailable) {
		a.log.Info(ctx, "server unavailable, trying offline login")
		err = a.authService.OfflineLogin(ctx, userName, password)
	}
	if err != nil {
		a.log.Warn(ctx, "login failed", "user", userName, "error", err)
		return err
	}

	a.userName = userName
	a.loggedIn = true
	a.log.Info(ctx, "logged in", "user", userName, "mode", a.mode())
	return nil
}

// Logout drops tokens and offline credentials. Cached data and pending
// changes stay on disk.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.userName = ""
	a.loggedIn = false
	a.printf("Logged out\n")
	return nil
}
