package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
	"github.com/JakeFAU/wallpaper-armada/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

var storedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func artifact() armada.Artifact {
	return armada.Artifact{
		SourceURL:   "https://i.redd.it/desert.jpg",
		Image:       []byte("full-image"),
		Width:       1920,
		Height:      1080,
		Format:      armada.FormatJPEG,
		Name:        "0123456789.jpg",
		Thumbnail:   []byte("thumb"),
		ThumbWidth:  450,
		ThumbHeight: 253,
	}
}

const permalink = "https://www.reddit.com/r/wallpapers/comments/abc/epic_desert/"

func newCoordinator(t *testing.T, blobs *memory.BlobStore, meta *memory.MetadataStore, opts ...Option) *Coordinator {
	t.Helper()
	opts = append(opts, WithClock(fixedClock{storedAt}))
	c, err := New(DefaultConfig(), blobs, meta, zap.NewNop(), opts...)
	require.NoError(t, err)
	return c
}

func TestStoreWritesBlobsThenMetadata(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	meta := memory.NewMetadataStore()
	c := newCoordinator(t, blobs, meta)

	result, err := c.Store(context.Background(), artifact(), []string{"epic", "desert", "sunset", "view"}, permalink)
	require.NoError(t, err)
	assert.Equal(t, armada.OutcomeStored, result.Outcome)
	assert.Equal(t, 4, result.KeywordsWritten)
	assert.Zero(t, result.KeywordsFailed)

	assert.Equal(t, []string{"thumbnails/0123456789.jpg", "wallpapers/0123456789.jpg"}, blobs.Keys())
	data, contentType, ok := blobs.Get("wallpapers/0123456789.jpg")
	require.True(t, ok)
	assert.Equal(t, "full-image", string(data))
	assert.Equal(t, "image/jpeg", contentType)

	rec, ok := meta.Wallpaper("0123456789.jpg")
	require.True(t, ok)
	assert.Equal(t, armada.WallpaperRecord{
		Name:      "0123456789.jpg",
		Source:    permalink,
		Width:     1920,
		Height:    1080,
		BlobPath:  "memory://wallpapers/0123456789.jpg",
		ThumbPath: "memory://thumbnails/0123456789.jpg",
		StoredAt:  storedAt,
	}, rec)
	assert.Equal(t, []string{"epic", "desert", "sunset", "view"}, meta.Keywords("0123456789.jpg"))
}

func TestStoreThumbnailFailureLeavesNothing(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	blobs.FailWrite("thumbnails/0123456789.jpg", errors.New("quota exceeded"))
	meta := memory.NewMetadataStore()
	c := newCoordinator(t, blobs, meta)

	result, err := c.Store(context.Background(), artifact(), []string{"desert"}, permalink)
	require.Error(t, err)
	assert.ErrorIs(t, err, armada.ErrPersistence)
	assert.Equal(t, armada.OutcomeFailed, result.Outcome)
	assert.False(t, result.Persisted())

	assert.Empty(t, blobs.Keys(), "full image must be rolled back")
	assert.ElementsMatch(t, []string{"wallpapers/0123456789.jpg", "thumbnails/0123456789.jpg"}, blobs.Deleted())
	assert.Zero(t, meta.Wallpapers())
}

func TestStoreThumbnailFailureRemovesLeftoverImage(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	ctx := context.Background()
	// An earlier interrupted store left the full image behind.
	_, err := blobs.Write(ctx, "wallpapers/0123456789.jpg", "image/jpeg", []byte("old"))
	require.NoError(t, err)
	blobs.FailWrite("thumbnails/0123456789.jpg", errors.New("quota exceeded"))
	meta := memory.NewMetadataStore()
	c := newCoordinator(t, blobs, meta)

	result, err := c.Store(ctx, artifact(), []string{"desert"}, permalink)
	require.Error(t, err)
	assert.ErrorIs(t, err, armada.ErrPersistence)
	assert.Equal(t, armada.OutcomeFailed, result.Outcome)

	assert.Empty(t, blobs.Keys(), "neither blob may remain after a blob write failure")
	assert.Zero(t, meta.Wallpapers())
}

func TestStoreImageFailureDeletesBothKeys(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	blobs.FailWrite("wallpapers/0123456789.jpg", errors.New("disk full"))
	c := newCoordinator(t, blobs, memory.NewMetadataStore())

	_, err := c.Store(context.Background(), artifact(), nil, permalink)
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"wallpapers/0123456789.jpg", "thumbnails/0123456789.jpg"}, blobs.Deleted())
	assert.Empty(t, blobs.Keys())
}

func TestStoreRedeliveryIsDuplicate(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	meta := memory.NewMetadataStore()
	c := newCoordinator(t, blobs, meta)
	ctx := context.Background()

	first, err := c.Store(ctx, artifact(), []string{"desert"}, permalink)
	require.NoError(t, err)
	require.Equal(t, armada.OutcomeStored, first.Outcome)

	second, err := c.Store(ctx, artifact(), []string{"desert"}, permalink)
	require.NoError(t, err)
	assert.Equal(t, armada.OutcomeDuplicate, second.Outcome)
	assert.False(t, second.Persisted())

	assert.Equal(t, 2, blobs.Writes(), "existing blobs are skipped")
	assert.Len(t, blobs.Keys(), 2, "duplicate keeps blobs")
	assert.Empty(t, blobs.Deleted())
	assert.Equal(t, 1, meta.Wallpapers())
	assert.Equal(t, []string{"desert"}, meta.Keywords("0123456789.jpg"))
}

func TestStoreKeywordFailureIsPartial(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	meta := memory.NewMetadataStore()
	meta.FailKeyword("sunset", errors.New("value too long"))
	c := newCoordinator(t, blobs, meta)

	result, err := c.Store(context.Background(), artifact(), []string{"desert", "sunset", "view", "desert"}, permalink)
	require.NoError(t, err)
	assert.Equal(t, armada.OutcomePartialKeywords, result.Outcome)
	assert.True(t, result.Persisted())
	assert.Equal(t, 2, result.KeywordsWritten)
	assert.Equal(t, 1, result.KeywordsFailed)
	assert.Equal(t, []string{"desert", "view"}, meta.Keywords("0123456789.jpg"))
}

func TestStoreMetadataFailureRollsBackBlobs(t *testing.T) {
	t.Parallel()

	testCases := map[string]func(*memory.MetadataStore){
		"begin":  func(m *memory.MetadataStore) { m.FailBegin(errors.New("connection refused")) },
		"insert": func(m *memory.MetadataStore) { m.FailInsertWallpaper(errors.New("disk full")) },
		"commit": func(m *memory.MetadataStore) { m.FailCommit(errors.New("serialization failure")) },
	}
	for name, inject := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			blobs := memory.NewBlobStore()
			meta := memory.NewMetadataStore()
			inject(meta)
			c := newCoordinator(t, blobs, meta)

			result, err := c.Store(context.Background(), artifact(), []string{"desert"}, permalink)
			require.Error(t, err)
			assert.ErrorIs(t, err, armada.ErrPersistence)
			assert.Equal(t, armada.OutcomeFailed, result.Outcome)
			assert.Empty(t, blobs.Keys())
			assert.Zero(t, meta.Wallpapers())
		})
	}
}

func TestStoreMetadataFailureKeepsPreexistingBlobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := memory.NewBlobStore()
	_, err := blobs.Write(ctx, "wallpapers/0123456789.jpg", "image/jpeg", []byte("earlier"))
	require.NoError(t, err)
	meta := memory.NewMetadataStore()
	meta.FailInsertWallpaper(errors.New("disk full"))
	c := newCoordinator(t, blobs, meta)

	_, err = c.Store(ctx, artifact(), nil, permalink)
	require.Error(t, err)
	assert.Equal(t, []string{"wallpapers/0123456789.jpg"}, blobs.Keys())
	assert.Equal(t, []string{"thumbnails/0123456789.jpg"}, blobs.Deleted())
}

func TestStoreRollbackErrorsAreJoined(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	deleteErr := errors.New("delete denied")
	blobs.FailDelete("wallpapers/0123456789.jpg", deleteErr)
	meta := memory.NewMetadataStore()
	meta.FailBegin(errors.New("connection refused"))
	c := newCoordinator(t, blobs, meta)

	_, err := c.Store(context.Background(), artifact(), nil, permalink)
	require.Error(t, err)
	assert.ErrorIs(t, err, armada.ErrPersistence)
	assert.ErrorIs(t, err, deleteErr)
}

func TestStoreExistsErrorFails(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	blobs.FailExists(errors.New("timeout"))
	c := newCoordinator(t, blobs, memory.NewMetadataStore())

	result, err := c.Store(context.Background(), artifact(), nil, permalink)
	assert.ErrorIs(t, err, armada.ErrPersistence)
	assert.Equal(t, armada.OutcomeFailed, result.Outcome)
}

func TestStoreSeparateThumbStore(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	thumbs := memory.NewBlobStore()
	c := newCoordinator(t, blobs, memory.NewMetadataStore(), WithThumbStore(thumbs))

	_, err := c.Store(context.Background(), artifact(), nil, permalink)
	require.NoError(t, err)
	assert.Equal(t, []string{"wallpapers/0123456789.jpg"}, blobs.Keys())
	assert.Equal(t, []string{"thumbnails/0123456789.jpg"}, thumbs.Keys())
}

func TestStoreRejectsUnnamedArtifact(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	c := newCoordinator(t, blobs, memory.NewMetadataStore())
	art := artifact()
	art.Name = ""
	_, err := c.Store(context.Background(), art, nil, permalink)
	assert.ErrorIs(t, err, armada.ErrPersistence)
	assert.Zero(t, blobs.Writes())
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	meta := memory.NewMetadataStore()

	_, err := New(DefaultConfig(), nil, meta, nil)
	assert.ErrorIs(t, err, armada.ErrConfiguration)
	_, err = New(Config{FullPrefix: "a"}, blobs, meta, nil)
	assert.ErrorIs(t, err, armada.ErrConfiguration)
	_, err = New(Config{FullPrefix: "a/", ThumbPrefix: "/a"}, blobs, meta, nil)
	assert.ErrorIs(t, err, armada.ErrConfiguration)

	c, err := New(Config{FullPrefix: "/full/", ThumbPrefix: "thumb"}, blobs, meta, nil)
	require.NoError(t, err)
	full, thumb := c.Keys("x.png")
	assert.Equal(t, "full/x.png", full)
	assert.Equal(t, "thumb/x.png", thumb)
}
