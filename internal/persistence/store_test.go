package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "subtitles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	fsStore, err := NewFSStore(afero.NewMemMapFs(), "/data/objects")
	require.NoError(t, err)

	return map[string]Store{
		"sqlite": sqliteStore,
		"fs":     fsStore,
	}
}

func TestStore_PutGetList(t *testing.T) {
	t.Parallel()

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "subtitles/2.vtt", []byte("WEBVTT\n\nb"), map[string]string{"filename": "b.srt"}))
			require.NoError(t, store.Put(ctx, "subtitles/1.vtt", []byte("WEBVTT\n\na"), map[string]string{"filename": "a.srt", "language": "cs"}))
			require.NoError(t, store.Put(ctx, "other/x", []byte("x"), nil))

			keys, err := store.List(ctx, "subtitles/")
			require.NoError(t, err)
			assert.Equal(t, []string{"subtitles/1.vtt", "subtitles/2.vtt"}, keys)

			all, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			obj, err := store.Get(ctx, "subtitles/1.vtt")
			require.NoError(t, err)
			assert.Equal(t, "WEBVTT\n\na", string(obj.Data))
			assert.Equal(t, "a.srt", obj.Metadata["filename"])
			assert.Equal(t, "cs", obj.Metadata["language"])
			assert.False(t, obj.UpdatedAt.IsZero())

			obj, err = store.Get(ctx, "other/x")
			require.NoError(t, err)
			assert.Empty(t, obj.Metadata)
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	t.Parallel()

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "subtitles/1.vtt", []byte("old"), map[string]string{"filename": "old.srt"}))
			require.NoError(t, store.Put(ctx, "subtitles/1.vtt", []byte("new"), map[string]string{"filename": "new.srt"}))

			obj, err := store.Get(ctx, "subtitles/1.vtt")
			require.NoError(t, err)
			assert.Equal(t, "new", string(obj.Data))
			assert.Equal(t, "new.srt", obj.Metadata["filename"])

			keys, err := store.List(ctx, "subtitles/")
			require.NoError(t, err)
			assert.Equal(t, []string{"subtitles/1.vtt"}, keys)
		})
	}
}

func TestStore_NotFoundAndDelete(t *testing.T) {
	t.Parallel()

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Get(ctx, "subtitles/404.vtt")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "subtitles/5.vtt", []byte("x"), nil))
			require.NoError(t, store.Delete(ctx, "subtitles/5.vtt"))
			_, err = store.Get(ctx, "subtitles/5.vtt")
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, store.Delete(ctx, "subtitles/5.vtt"))
		})
	}
}

func TestStore_ListPrefixBoundaries(t *testing.T) {
	t.Parallel()

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{"subtitles0", "subtitles.old", "subtitles/zz.vtt", "subtitles/1.vtt", "subtitle/1.vtt"} {
				require.NoError(t, store.Put(ctx, key, []byte("x"), nil))
			}

			keys, err := store.List(ctx, "subtitles/")
			require.NoError(t, err)
			assert.Equal(t, []string{"subtitles/1.vtt", "subtitles/zz.vtt"}, keys)
		})
	}
}

func TestSQLiteStore_ListUsesKeyIndex(t *testing.T) {
	t.Parallel()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "subtitles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	end, ok := prefixEnd("subtitles/")
	require.True(t, ok)
	rows, err := store.db.Query(`EXPLAIN QUERY PLAN SELECT key FROM objects WHERE key >= ? AND key < ? ORDER BY key ASC`, "subtitles/", end)
	require.NoError(t, err)
	defer rows.Close()

	var plan []string
	for rows.Next() {
		var id, parent, notused int
		var detail string
		require.NoError(t, rows.Scan(&id, &parent, &notused, &detail))
		plan = append(plan, detail)
	}
	require.NoError(t, rows.Err())
	require.NotEmpty(t, plan)
	assert.Contains(t, plan[0], "SEARCH")
}

func TestPrefixEnd(t *testing.T) {
	end, ok := prefixEnd("subtitles/")
	assert.True(t, ok)
	assert.Equal(t, "subtitles0", end)

	end, ok = prefixEnd("a\xff")
	assert.True(t, ok)
	assert.Equal(t, "b", end)

	_, ok = prefixEnd("")
	assert.False(t, ok)
	_, ok = prefixEnd("\xff\xff")
	assert.False(t, ok)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "subtitles.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "subtitles/9.vtt", []byte("x"), nil))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	keys, err := store.List(context.Background(), "subtitles/")
	require.NoError(t, err)
	assert.Equal(t, []string{"subtitles/9.vtt"}, keys)
}

func TestFSStore_RejectsBadKeys(t *testing.T) {
	store, err := NewFSStore(afero.NewMemMapFs(), "/root")
	require.NoError(t, err)

	ctx := context.Background()
	assert.Error(t, store.Put(ctx, "", []byte("x"), nil))
	assert.Error(t, store.Put(ctx, "dir/", []byte("x"), nil))
	assert.Error(t, store.Put(ctx, "a.meta.json", []byte("x"), nil))

	require.NoError(t, store.Put(ctx, "../escape", []byte("x"), nil))
	keys, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"escape"}, keys)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_objects.sql"))
	assert.Equal(t, 12, migrationVersion("012_x.sql"))
	assert.Equal(t, 0, migrationVersion("readme.md"))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open("fs", dir)
	require.NoError(t, err)
	_, ok := store.(*FSStore)
	assert.True(t, ok)

	store, err = Open("", dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, ok = store.(*SQLiteStore)
	assert.True(t, ok)

	_, err = Open("s3", dir)
	assert.Error(t, err)
}
