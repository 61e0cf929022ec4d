package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseKV runs the behaviour every backend must share.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, KeyCartItems)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, KeyCartItems, `[{"_id":"A","qty":2}]`))
	v, err := kv.Get(ctx, KeyCartItems)
	require.NoError(t, err)
	assert.Equal(t, `[{"_id":"A","qty":2}]`, v)

	// Overwrite
	require.NoError(t, kv.Set(ctx, KeyCartItems, `[]`))
	v, err = kv.Get(ctx, KeyCartItems)
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	// Keys are independent
	require.NoError(t, kv.Set(ctx, KeyUserToken, "token-123"))
	v, err = kv.Get(ctx, KeyCartItems)
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	require.NoError(t, kv.Delete(ctx, KeyUserToken))
	_, err = kv.Get(ctx, KeyUserToken)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is fine
	require.NoError(t, kv.Delete(ctx, KeyUserToken))
}

// ============================================
// Memory Store Tests
// ============================================

func TestMemoryStore(t *testing.T) {
	exerciseKV(t, NewMemoryStore())
}

func TestMemoryStore_Keys(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyCartItems, "[]"))
	require.NoError(t, s.Set(ctx, KeyUserToken, "t"))

	assert.ElementsMatch(t, []string{KeyCartItems, KeyUserToken}, s.Keys())
}

// ============================================
// File Store Tests
// ============================================

func TestFileStore(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "kiosk-1")
	require.NoError(t, err)
	exerciseKV(t, fs)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir, "kiosk-1")
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, KeyUserToken, "persisted"))

	second, err := NewFileStore(dir, "kiosk-1")
	require.NoError(t, err)
	v, err := second.Get(ctx, KeyUserToken)
	require.NoError(t, err)
	assert.Equal(t, "persisted", v)
}

func TestFileStore_ProfilesAreIsolated(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	alice, err := NewFileStore(dir, "alice")
	require.NoError(t, err)
	bob, err := NewFileStore(dir, "bob")
	require.NoError(t, err)

	require.NoError(t, alice.Set(ctx, KeyUserToken, "alice-token"))

	_, err = bob.Get(ctx, KeyUserToken)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, bob.Set(ctx, KeyUserToken, "bob-token"))
	require.NoError(t, bob.Delete(ctx, KeyUserToken))
	v, err := alice.Get(ctx, KeyUserToken)
	require.NoError(t, err)
	assert.Equal(t, "alice-token", v)
}

func TestFileStore_DefaultProfileDir(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "")
	require.NoError(t, err)

	require.NoError(t, fs.Set(context.Background(), KeyCartItems, "[]"))

	_, err = os.Stat(filepath.Join(dir, DefaultProfile, KeyCartItems))
	assert.NoError(t, err)
}

func TestFileStore_EscapesKeys(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "kiosk-1")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Set(ctx, "../outside", "x"))
	v, err := fs.Get(ctx, "../outside")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

// ============================================
// Open Tests
// ============================================

func TestOpen_DefaultsToFile(t *testing.T) {
	kv, closeFn, err := Open(context.Background(), Options{Dir: t.TempDir()})
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &FileStore{}, kv)
}

func TestOpen_SealedWhenSecretSet(t *testing.T) {
	kv, closeFn, err := Open(context.Background(), Options{Backend: BackendMemory, Secret: "s3cret"})
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &Sealed{}, kv)
	exerciseKV(t, kv)
}

func TestOpen_FileProfilesShareDirSafely(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	alice, closeAlice, err := Open(ctx, Options{Backend: BackendFile, Dir: dir, Profile: "alice"})
	require.NoError(t, err)
	defer closeAlice()
	bob, closeBob, err := Open(ctx, Options{Backend: BackendFile, Dir: dir, Profile: "bob"})
	require.NoError(t, err)
	defer closeBob()

	require.NoError(t, alice.Set(ctx, KeyUserToken, "alice-token"))

	_, err = bob.Get(ctx, KeyUserToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, _, err := Open(context.Background(), Options{Backend: "floppy"})
	assert.Error(t, err)
}
