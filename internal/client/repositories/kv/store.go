// Package kv is the local key/value persistence layer. Domain caches, sync
// queues and session data are all stored as opaque values under string keys.
package kv

import "context"

// Store is a durable key/value store.
//
// Get returns (nil, nil) for a missing key. Delete of a missing key is not an
// error. WithinTx runs fn against a transactional view of the store: every
// write made through that view commits together or not at all, and
// transactions on the same store are serialized.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
