package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStoreWriteCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.Write(context.Background(), "wallpapers/abc.jpg", "image/jpeg", payload)
	require.NoError(t, err)
	assert.Equal(t, "memory://wallpapers/abc.jpg", uri)

	payload[0] = 'C'
	stored, contentType, ok := store.Get("wallpapers/abc.jpg")
	require.True(t, ok)
	assert.Equal(t, "content", string(stored), "stored copy must be immutable")
	assert.Equal(t, "image/jpeg", contentType)
}

func TestBlobStoreExistsAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewBlobStore()
	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Write(ctx, "k", "image/png", []byte("x"))
	require.NoError(t, err)
	ok, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"), "deleting an absent key succeeds")
	assert.Empty(t, store.Keys())
	assert.Equal(t, []string{"k", "k"}, store.Deleted())
}

func TestBlobStoreFailureInjection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewBlobStore()
	boom := errors.New("boom")

	store.FailWrite("a", boom)
	_, err := store.Write(ctx, "a", "", nil)
	assert.ErrorIs(t, err, boom)
	store.FailWrite("a", nil)
	_, err = store.Write(ctx, "a", "", nil)
	assert.NoError(t, err)

	store.FailDelete("a", boom)
	assert.ErrorIs(t, store.Delete(ctx, "a"), boom)

	store.FailExists(boom)
	_, err = store.Exists(ctx, "a")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.Writes())
}
