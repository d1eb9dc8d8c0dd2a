package kv

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-process Store used by tests and ephemeral sessions.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return clone(v), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = clone(value)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) List(_ context.Context) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		out[k] = clone(v)
	}
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.data)
	return nil
}

// WithinTx buffers writes in an overlay and applies them on success.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{base: s, writes: make(map[string][]byte), deleted: make(map[string]struct{})}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.cleared {
		clear(s.data)
	}
	for k := range tx.deleted {
		delete(s.data, k)
	}
	maps.Copy(s.data, tx.writes)
	return nil
}

type memoryTx struct {
	base    *MemoryStore
	writes  map[string][]byte
	deleted map[string]struct{}
	cleared bool
}

func (t *memoryTx) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := t.writes[key]; ok {
		return clone(v), nil
	}
	if _, ok := t.deleted[key]; ok || t.cleared {
		return nil, nil
	}
	return t.base.Get(ctx, key)
}

func (t *memoryTx) Set(_ context.Context, key string, value []byte) error {
	t.writes[key] = clone(value)
	delete(t.deleted, key)
	return nil
}

func (t *memoryTx) Delete(_ context.Context, key string) error {
	delete(t.writes, key)
	t.deleted[key] = struct{}{}
	return nil
}

func (t *memoryTx) List(ctx context.Context) (map[string][]byte, error) {
	out := make(map[string][]byte)
	if !t.cleared {
		base, err := t.base.List(ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range base {
			if _, gone := t.deleted[k]; !gone {
				out[k] = v
			}
		}
	}
	for k, v := range t.writes {
		out[k] = clone(v)
	}
	return out, nil
}

func (t *memoryTx) Clear(_ context.Context) error {
	t.cleared = true
	clear(t.writes)
	clear(t.deleted)
	return nil
}

func (t *memoryTx) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, t)
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
