package disk

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	content := []byte("hello")
	key := digest.FromBytes(content)
	require.NoError(t, c.Put(key, content))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, content, got)
	assert.Equal(t, int64(len(content)), c.SizeBytes())

	hexKey := key.Encoded()
	_, err = os.Stat(filepath.Join(dir, "sha256", hexKey[:defaultShardPrefixLen], hexKey))
	require.NoError(t, err)

	// A second Put of the same key is a no-op.
	require.NoError(t, c.Put(key, content))
	assert.Equal(t, int64(len(content)), c.SizeBytes())

	require.NoError(t, c.Delete(key))
	_, ok = c.Get(key)
	assert.False(t, ok)
	assert.Zero(t, c.SizeBytes())
	require.NoError(t, c.Delete(key), "deleting a missing entry is a no-op")
}

func TestCacheShardDisable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(0))
	require.NoError(t, err)

	key := digest.FromString("flat")
	require.NoError(t, c.Put(key, []byte("flat")))
	_, err = os.Stat(filepath.Join(dir, "sha256", key.Encoded()))
	require.NoError(t, err)
}

func TestCacheInvalidKey(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, c.Put(digest.Digest("sha256:../../etc"), []byte("x")))
	_, ok := c.Get(digest.Digest(""))
	assert.False(t, ok)
}

func TestCacheMaxBytes(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir(), WithMaxBytes(10))
	require.NoError(t, err)

	old := digest.FromString("old")
	require.NoError(t, c.Put(old, []byte("123456")))
	// Make the first entry clearly older than the next.
	path, err := c.path(old)
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	fresh := digest.FromString("fresh")
	require.NoError(t, c.Put(fresh, []byte("abcdef")))
	_, ok := c.Get(old)
	assert.False(t, ok, "oldest entry is pruned to make room")
	_, ok = c.Get(fresh)
	assert.True(t, ok)
	assert.Equal(t, int64(6), c.SizeBytes())

	huge := digest.FromString("huge")
	require.NoError(t, c.Put(huge, make([]byte, 11)))
	_, ok = c.Get(huge)
	assert.False(t, ok, "content above the limit is not stored")
}

func TestNewRestoresSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, c.Put(digest.FromString("a"), []byte("abc")))

	reopened, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(3), reopened.SizeBytes())

	_, err = New("")
	assert.Error(t, err)
}
