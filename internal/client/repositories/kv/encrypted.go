package kv

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/lifekeeper/internal/common"
	"github.com/dmitrijs2005/lifekeeper/internal/cryptox"
)

// EncryptedStore seals values with AES-GCM before handing them to the inner
// store. Keys are namespaced with prefix so the encrypted entries can live
// next to plain ones and List/Clear only touch this namespace.
//
// The store starts locked; every operation except Delete and Clear returns
// common.ErrLocked until Unlock is called with the master key.
type EncryptedStore struct {
	inner  Store
	prefix string

	mu  sync.RWMutex
	key []byte
}

func NewEncryptedStore(inner Store, prefix string) *EncryptedStore {
	return &EncryptedStore{inner: inner, prefix: prefix}
}

// Unlock installs the encryption key.
func (s *EncryptedStore) Unlock(key []byte) error {
	if len(key) != cryptox.KeySize {
		return fmt.Errorf("encryption key must be %d bytes, got %d", cryptox.KeySize, len(key))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = append([]byte(nil), key...)
	return nil
}

// Lock wipes the key from memory.
func (s *EncryptedStore) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	common.WipeByteArray(s.key)
	s.key = nil
}

func (s *EncryptedStore) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key == nil
}

func (s *EncryptedStore) currentKey() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return nil, common.ErrLocked
	}
	return s.key, nil
}

func (s *EncryptedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.get(ctx, s.inner, key)
}

func (s *EncryptedStore) get(ctx context.Context, inner Store, key string) ([]byte, error) {
	k, err := s.currentKey()
	if err != nil {
		return nil, err
	}
	sealed, err := inner.Get(ctx, s.prefix+key)
	if err != nil || sealed == nil {
		return nil, err
	}
	plain, err := cryptox.Open(sealed, k)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plain, nil
}

func (s *EncryptedStore) Set(ctx context.Context, key string, value []byte) error {
	return s.set(ctx, s.inner, key, value)
}

func (s *EncryptedStore) set(ctx context.Context, inner Store, key string, value []byte) error {
	k, err := s.currentKey()
	if err != nil {
		return err
	}
	sealed, err := cryptox.Seal(value, k)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return inner.Set(ctx, s.prefix+key, sealed)
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

func (s *EncryptedStore) List(ctx context.Context) (map[string][]byte, error) {
	return s.list(ctx, s.inner)
}

func (s *EncryptedStore) list(ctx context.Context, inner Store) (map[string][]byte, error) {
	k, err := s.currentKey()
	if err != nil {
		return nil, err
	}
	all, err := inner.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte)
	for name, sealed := range all {
		if !strings.HasPrefix(name, s.prefix) {
			continue
		}
		plain, err := cryptox.Open(sealed, k)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %s: %w", name, err)
		}
		out[strings.TrimPrefix(name, s.prefix)] = plain
	}
	return out, nil
}

func (s *EncryptedStore) Clear(ctx context.Context) error {
	return s.clear(ctx, s.inner)
}

func (s *EncryptedStore) clear(ctx context.Context, inner Store) error {
	all, err := inner.List(ctx)
	if err != nil {
		return err
	}
	for name := range all {
		if strings.HasPrefix(name, s.prefix) {
			if err := inner.Delete(ctx, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *EncryptedStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.inner.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		return fn(ctx, &encryptedTx{owner: s, inner: tx})
	})
}

type encryptedTx struct {
	owner *EncryptedStore
	inner Store
}

func (t *encryptedTx) Get(ctx context.Context, key string) ([]byte, error) {
	return t.owner.get(ctx, t.inner, key)
}

func (t *encryptedTx) Set(ctx context.Context, key string, value []byte) error {
	return t.owner.set(ctx, t.inner, key, value)
}

func (t *encryptedTx) Delete(ctx context.Context, key string) error {
	return t.inner.Delete(ctx, t.owner.prefix+key)
}

func (t *encryptedTx) List(ctx context.Context) (map[string][]byte, error) {
	return t.owner.list(ctx, t.inner)
}

func (t *encryptedTx) Clear(ctx context.Context) error {
	return t.owner.clear(ctx, t.inner)
}

func (t *encryptedTx) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, t)
}
