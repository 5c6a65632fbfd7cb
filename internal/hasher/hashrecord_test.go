package hasher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashRecordStore_CachesUntilFingerprintChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	h := New(0)
	store := NewHashRecordStore()

	c1, err := store.ContentHash(h, path)
	require.NoError(t, err)

	rec, ok := store.Get(path)
	require.True(t, ok)
	assert.Equal(t, c1, rec.ContentHash)

	c2, err := store.ContentHash(h, path)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestHashRecordStore_Invalidated_OnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	h := New(0)
	store := NewHashRecordStore()

	c1, err := store.ContentHash(h, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("world!"), 0o644))

	c2, err := store.ContentHash(h, path)
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}

func TestHashRecordStore_ShardsDistributePaths(t *testing.T) {
	store := NewHashRecordStore()
	seen := make(map[*hashShard]bool)
	for i := 0; i < 200; i++ {
		p := filepath.Join("pkg", "file", string(rune('a'+i%26)))
		seen[store.shardFor(p)] = true
	}
	assert.Greater(t, len(seen), 1, "distinct paths should spread across more than one shard")
}
