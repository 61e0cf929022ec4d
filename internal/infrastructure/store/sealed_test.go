package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealed(t *testing.T) {
	sealed, err := NewSealed(NewMemoryStore(), "correct horse")
	require.NoError(t, err)
	exerciseKV(t, sealed)
}

func TestSealed_EncryptsAtRest(t *testing.T) {
	inner := NewMemoryStore()
	sealed, err := NewSealed(inner, "correct horse")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, sealed.Set(ctx, KeyUserToken, "plain-token"))

	raw, err := inner.Get(ctx, KeyUserToken)
	require.NoError(t, err)
	assert.NotContains(t, raw, "plain-token")
}

func TestSealed_WrongSecret(t *testing.T) {
	inner := NewMemoryStore()
	ctx := context.Background()

	writer, err := NewSealed(inner, "secret-one")
	require.NoError(t, err)
	require.NoError(t, writer.Set(ctx, KeyUserToken, "token"))

	reader, err := NewSealed(inner, "secret-two")
	require.NoError(t, err)
	_, err = reader.Get(ctx, KeyUserToken)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSealed_ValueMovedToAnotherKey(t *testing.T) {
	inner := NewMemoryStore()
	sealed, err := NewSealed(inner, "secret")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, sealed.Set(ctx, KeyUserToken, "token"))
	raw, _ := inner.Get(ctx, KeyUserToken)
	require.NoError(t, inner.Set(ctx, KeyCartItems, raw))

	_, err = sealed.Get(ctx, KeyCartItems)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSealed_GarbageValue(t *testing.T) {
	inner := NewMemoryStore()
	sealed, err := NewSealed(inner, "secret")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, inner.Set(ctx, KeyCartItems, "not base64 at all!"))
	_, err = sealed.Get(ctx, KeyCartItems)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestNewSealed_EmptySecret(t *testing.T) {
	_, err := NewSealed(NewMemoryStore(), "")
	assert.Error(t, err)
}
