package kv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/lifekeeper/internal/logging"
)

// DecodeError reports a stored value that is not valid JSON for the
// requested type.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode kv[%s]: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Load reads key and decodes it into T. A missing key yields the zero value
// and ok=false. A value that fails to decode is treated the same way after
// being logged, so a corrupted cache never blocks the caller.
func Load[T any](ctx context.Context, s Store, log logging.Logger, key string) (v T, ok bool, err error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return v, false, err
	}
	if len(raw) == 0 {
		return v, false, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		log.Warn(ctx, "discarding undecodable local value", "key", key, "error", &DecodeError{Key: key, Err: err})
		return zero, false, nil
	}
	return v, true, nil
}

// Save encodes v as JSON under key.
func Save[T any](ctx context.Context, s Store, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode kv[%s]: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// Remove deletes key.
func Remove(ctx context.Context, s Store, key string) error {
	return s.Delete(ctx, key)
}

// Update loads key, passes it to fn and saves the result, all in one
// transaction. If fn returns an error nothing is written.
func Update[T any](ctx context.Context, s Store, log logging.Logger, key string, fn func(cur T, ok bool) (T, error)) error {
	return s.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		cur, ok, err := Load[T](ctx, tx, log, key)
		if err != nil {
			return err
		}
		next, err := fn(cur, ok)
		if err != nil {
			return err
		}
		return Save(ctx, tx, key, next)
	})
}
