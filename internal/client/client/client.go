package client

import (
	"context"
	"encoding/json"
)

// Tokens is the bearer credential pair issued by the server.
type Tokens struct {
	Access  string
	Refresh string
}

// TokenSource stores the current tokens. Refreshed tokens are written back
// through SaveTokens.
type TokenSource interface {
	Tokens(ctx context.Context) (Tokens, error)
	SaveTokens(ctx context.Context, t Tokens) error
}

// Client is the account and health API of the server.
type Client interface {
	Register(ctx context.Context, username string, password []byte) error
	Login(ctx context.Context, username string, password []byte) (Tokens, error)
	Ping(ctx context.Context) error
}

// Remote is the REST contract of one entity collection.
type Remote[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, body json.RawMessage) (T, error)
	Update(ctx context.Context, id string, body json.RawMessage) (T, error)
	Delete(ctx context.Context, id string) error
	Action(ctx context.Context, id, action string) error
}
