package armada

import (
	"context"
	"time"
)

// Feed returns the current items of one content source.
type Feed interface {
	FetchRecent(ctx context.Context, limit int) ([]FeedItem, error)
}

// BlobStore is key-addressed byte storage for full images and thumbnails.
type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	// Write stores data at key and returns a URI for the object.
	Write(ctx context.Context, key string, contentType string, data []byte) (string, error)
	// Delete removes key. Deleting an absent key returns nil.
	Delete(ctx context.Context, key string) error
}

// MetadataStore opens transactions against the relational wallpaper store.
type MetadataStore interface {
	Begin(ctx context.Context) (MetadataTx, error)
}

// MetadataTx scopes the writes of one Store call.
type MetadataTx interface {
	// InsertWallpaper returns an error wrapping ErrDuplicate on a primary-key conflict.
	InsertWallpaper(ctx context.Context, record WallpaperRecord) error
	InsertKeyword(ctx context.Context, record KeywordRecord) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Resolver turns a reference URL into a validated Artifact.
type Resolver interface {
	Resolve(ctx context.Context, url string) (Artifact, error)
}

// Coordinator persists an artifact across the blob and metadata stores.
type Coordinator interface {
	Store(ctx context.Context, artifact Artifact, keywords []string, source string) (StoreResult, error)
}

// Source polls one feed and persists what it finds. Crawl never returns item-level failures.
type Source interface {
	Name() string
	Crawl(ctx context.Context)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Publisher pushes stored-wallpaper events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes hex digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces correlation IDs.
type IDGenerator interface {
	NewID() (string, error)
}
