package freshness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	// No record file yet.
	assert.Empty(t, store.Load())

	entry := Entry{
		MTimes:    map[string]int64{"/data/a.xlsx": 100, "/data/b.xlsx": 200},
		CachePath: "cache/O_NFCI.parquet",
		FileCount: 2,
	}
	require.NoError(t, store.Update("O_NFCI", entry))

	got := store.Load()
	require.Contains(t, got, "O_NFCI")
	assert.Equal(t, entry, got["O_NFCI"])

	// The record file lives at the documented location.
	_, err := os.Stat(filepath.Join(root, "_meta", "_last_loaded.json"))
	assert.NoError(t, err)
}

func TestStoreRemove(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Update("A", Entry{FileCount: 1}))
	require.NoError(t, store.Update("B", Entry{FileCount: 1}))

	require.NoError(t, store.Remove("A"))
	got := store.Load()
	assert.NotContains(t, got, "A")
	assert.Contains(t, got, "B")

	// Removing a missing record is a no-op.
	require.NoError(t, store.Remove("A"))
}

func TestLoadToleratesCorruptFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "_meta"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "_meta", "_last_loaded.json"), []byte("{not json"), 0o644))

	// Corrupt metadata degrades to "reload everything", never to a crash.
	assert.Empty(t, NewStore(root).Load())
}

func TestSnapshot(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.xlsx")
	require.NoError(t, os.WriteFile(a, []byte("x"), 0o644))

	snap, err := Snapshot([]string{a})
	require.NoError(t, err)
	info, err := os.Stat(a)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{a: info.ModTime().UnixNano()}, snap)

	_, err = Snapshot([]string{filepath.Join(dir, "missing.xlsx")})
	assert.Error(t, err)
}

func TestChanged(t *testing.T) {
	stored := Entry{MTimes: map[string]int64{"/a": 1, "/b": 2}}

	t.Run("identical set is unchanged", func(t *testing.T) {
		assert.False(t, Changed(map[string]int64{"/a": 1, "/b": 2}, stored, true))
	})

	t.Run("comparison is order independent", func(t *testing.T) {
		// Built from a file list in reverse order.
		files := []string{"/b", "/a"}
		current := map[string]int64{}
		for _, f := range files {
			current[f] = stored.MTimes[f]
		}
		assert.False(t, Changed(current, stored, true))
	})

	t.Run("touched file invalidates", func(t *testing.T) {
		assert.True(t, Changed(map[string]int64{"/a": 1, "/b": 3}, stored, true))
	})

	t.Run("new file invalidates", func(t *testing.T) {
		assert.True(t, Changed(map[string]int64{"/a": 1, "/b": 2, "/c": 3}, stored, true))
	})

	t.Run("removed file invalidates", func(t *testing.T) {
		assert.True(t, Changed(map[string]int64{"/a": 1}, stored, true))
	})

	t.Run("missing cache invalidates even when mtimes match", func(t *testing.T) {
		assert.True(t, Changed(map[string]int64{"/a": 1, "/b": 2}, stored, false))
	})

	t.Run("no prior record invalidates", func(t *testing.T) {
		assert.True(t, Changed(map[string]int64{"/a": 1}, Entry{}, true))
	})
}

func TestSaveIsAtomic(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	require.NoError(t, store.Update("S", Entry{MTimes: map[string]int64{"/a": time.Now().UnixNano()}}))

	// No temp file left behind.
	entries, err := os.ReadDir(filepath.Join(root, "_meta"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "_last_loaded.json", entries[0].Name())
}
