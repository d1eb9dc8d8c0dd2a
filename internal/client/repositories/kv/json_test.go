package kv

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/lifekeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func nopLogger() logging.Logger { return logging.NewNop() }

func TestLoadSave_RoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	in := []item{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}}
	require.NoError(t, Save(ctx, s, "offline_items", in))

	out, ok, err := Load[[]item](ctx, s, nopLogger(), "offline_items")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestLoad_MissingKey(t *testing.T) {
	out, ok, err := Load[[]item](context.Background(), NewMemoryStore(), nopLogger(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, out)
}

func TestLoad_CorruptValue_LoggedAndTreatedAsAbsent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "offline_items", []byte("{not json")))

	var buf bytes.Buffer
	log := logging.NewTextSlogLogger(&buf, "debug")

	out, ok, err := Load[[]item](ctx, s, log, "offline_items")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, out)
	assert.Contains(t, buf.String(), "discarding undecodable local value")
	assert.Contains(t, buf.String(), "offline_items")
}

func TestDecodeError_Unwraps(t *testing.T) {
	cause := errors.New("bad")
	err := &DecodeError{Key: "k", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "decode kv[k]: bad", err.Error())
}

func TestRemove(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, Save(ctx, s, "k", 1))
	require.NoError(t, Remove(ctx, s, "k"))

	_, ok, err := Load[int](ctx, s, nopLogger(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdate_ErrorLeavesValueUntouched(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, Save(ctx, s, "k", []item{{ID: "1"}}))

	boom := errors.New("boom")
	err := Update(ctx, s, nopLogger(), "k", func(cur []item, _ bool) ([]item, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	out, _, err := Load[[]item](ctx, s, nopLogger(), "k")
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "1"}}, out)
}

func TestUpdate_AppliesFunction(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := Update(ctx, s, nopLogger(), "k", func(cur []item, ok bool) ([]item, error) {
		assert.False(t, ok)
		return append(cur, item{ID: "1"}), nil
	})
	require.NoError(t, err)

	out, ok, err := Load[[]item](ctx, s, nopLogger(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, out, 1)
}
