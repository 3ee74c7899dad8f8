package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()

	fileKV, err := NewFileKV(t.TempDir(), "")
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisKV := NewRedisKVFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { redisKV.Close() })

	return map[string]KV{
		"file":  fileKV,
		"redis": redisKV,
		"mem":   NewMemKV(),
	}
}

func TestKVContract(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get("missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set("a", []byte("one")))
			require.NoError(t, kv.Set("a", []byte("two")))
			got, err := kv.Get("a")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), got)

			require.NoError(t, kv.Erase("a"))
			_, err = kv.Get("a")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.NoError(t, kv.Erase("a"), "erasing a missing key succeeds")

			require.NoError(t, kv.Set("x", []byte{1}))
			require.NoError(t, kv.Set("y", []byte{2}))
			require.NoError(t, kv.EraseAll())
			_, err = kv.Get("x")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = kv.Get("y")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, kv.EraseAll(), "erase all on empty store is a no-op")
		})
	}
}

func TestFileKVSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir, "ns")
	require.NoError(t, err)
	require.NoError(t, kv.Set("payload", []byte("data")))

	reopened, err := NewFileKV(dir, "ns")
	require.NoError(t, err)
	got, err := reopened.Get("payload")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	entries, err := os.ReadDir(filepath.Join(dir, "ns"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileKVRejectsBadKeys(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), "")
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", ".hidden", `a\b`} {
		err := kv.Set(key, []byte("x"))
		assert.ErrorIs(t, err, ErrStore, "key %q", key)
	}
}

func TestRedisKVNamespaceIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := NewRedisKVFromClient(client, "a")
	b := NewRedisKVFromClient(client, "b")

	require.NoError(t, a.Set("payload", []byte("A")))
	require.NoError(t, b.Set("payload", []byte("B")))
	require.NoError(t, a.EraseAll())

	_, err := a.Get("payload")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := b.Get("payload")
	require.NoError(t, err)
	assert.Equal(t, []byte("B"), got)
	assert.True(t, mr.Exists("b:payload"))
}

func TestRedisKVUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisKV(RedisConfig{Addr: addr}, "")
	assert.ErrorIs(t, err, ErrStore)
}
