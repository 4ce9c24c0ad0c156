package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
)

func record(name string) armada.WallpaperRecord {
	return armada.WallpaperRecord{
		Name:     name,
		Source:   "https://www.reddit.com/r/wallpapers/comments/x",
		Width:    1920,
		Height:   1080,
		BlobPath: "memory://wallpapers/" + name,
		StoredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMetadataStoreCommitMakesRowsVisible(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMetadataStore()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertWallpaper(ctx, record("a.jpg")))
	require.NoError(t, tx.InsertKeyword(ctx, armada.KeywordRecord{Word: "desert", Name: "a.jpg"}))
	require.NoError(t, tx.InsertKeyword(ctx, armada.KeywordRecord{Word: "sunset", Name: "a.jpg"}))

	_, visible := store.Wallpaper("a.jpg")
	assert.False(t, visible, "staged rows are invisible before commit")

	require.NoError(t, tx.Commit(ctx))
	got, ok := store.Wallpaper("a.jpg")
	require.True(t, ok)
	assert.Equal(t, 1920, got.Width)
	assert.Equal(t, []string{"desert", "sunset"}, store.Keywords("a.jpg"))
	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
}

func TestMetadataStoreRollbackDiscards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMetadataStore()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertWallpaper(ctx, record("a.jpg")))
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx))
	assert.Zero(t, store.Wallpapers())
}

func TestMetadataStoreEnforcesKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMetadataStore()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertWallpaper(ctx, record("a.jpg")))
	require.NoError(t, tx.Commit(ctx))

	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, tx.InsertWallpaper(ctx, record("a.jpg")), armada.ErrDuplicate)
	assert.Error(t, tx.InsertKeyword(ctx, armada.KeywordRecord{Word: "x", Name: "missing.jpg"}))
	require.NoError(t, tx.InsertKeyword(ctx, armada.KeywordRecord{Word: "x", Name: "a.jpg"}))
	assert.ErrorIs(t, tx.InsertKeyword(ctx, armada.KeywordRecord{Word: "x", Name: "a.jpg"}), armada.ErrDuplicate)
}

func TestMetadataStoreFailureInjection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	boom := errors.New("boom")
	store := NewMetadataStore()

	store.FailBegin(boom)
	_, err := store.Begin(ctx)
	assert.ErrorIs(t, err, boom)
	store.FailBegin(nil)

	store.FailKeyword("bad", boom)
	store.FailCommit(boom)
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertWallpaper(ctx, record("a.jpg")))
	assert.ErrorIs(t, tx.InsertKeyword(ctx, armada.KeywordRecord{Word: "bad", Name: "a.jpg"}), boom)
	assert.ErrorIs(t, tx.Commit(ctx), boom)
	assert.Zero(t, store.Wallpapers())
}
