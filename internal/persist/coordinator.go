// Package persist writes resolved artifacts to the blob store and the metadata store as one
// unit: both blobs first, then the wallpaper row and its keywords in a single transaction.
// A failure in either phase removes the blobs this call wrote.
package persist

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
	"github.com/JakeFAU/wallpaper-armada/internal/clock/system"
	"github.com/JakeFAU/wallpaper-armada/internal/metrics"
)

const tracerName = "github.com/JakeFAU/wallpaper-armada/internal/persist"

// URIResolver is implemented by blob stores that can address an existing key without writing it.
type URIResolver interface {
	URI(key string) string
}

// Config holds the blob key prefixes.
type Config struct {
	FullPrefix  string
	ThumbPrefix string
}

// DefaultConfig returns the stock prefixes.
func DefaultConfig() Config {
	return Config{FullPrefix: "wallpapers", ThumbPrefix: "thumbnails"}
}

// Coordinator implements armada.Coordinator.
type Coordinator struct {
	cfg    Config
	full   armada.BlobStore
	thumbs armada.BlobStore
	meta   armada.MetadataStore
	clock  armada.Clock
	logger *zap.Logger
	tracer trace.Tracer
}

var _ armada.Coordinator = (*Coordinator)(nil)

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithThumbStore stores thumbnails in a separate blob store.
func WithThumbStore(store armada.BlobStore) Option {
	return func(c *Coordinator) {
		if store != nil {
			c.thumbs = store
		}
	}
}

// WithClock overrides the clock used for StoredAt.
func WithClock(clock armada.Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New builds a Coordinator over blobs and meta.
func New(cfg Config, blobs armada.BlobStore, meta armada.MetadataStore, logger *zap.Logger, opts ...Option) (*Coordinator, error) {
	if blobs == nil || meta == nil {
		return nil, fmt.Errorf("blob and metadata stores are required: %w", armada.ErrConfiguration)
	}
	cfg.FullPrefix = strings.Trim(cfg.FullPrefix, "/")
	cfg.ThumbPrefix = strings.Trim(cfg.ThumbPrefix, "/")
	if cfg.FullPrefix == "" || cfg.ThumbPrefix == "" {
		return nil, fmt.Errorf("blob prefixes are required: %w", armada.ErrConfiguration)
	}
	if cfg.FullPrefix == cfg.ThumbPrefix {
		return nil, fmt.Errorf("full and thumbnail prefixes must differ, both %q: %w", cfg.FullPrefix, armada.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		cfg:    cfg,
		full:   blobs,
		thumbs: blobs,
		meta:   meta,
		clock:  system.New(),
		logger: logger.Named("persist"),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Keys returns the full-image and thumbnail keys for an artifact name.
func (c *Coordinator) Keys(name string) (string, string) {
	return path.Join(c.cfg.FullPrefix, name), path.Join(c.cfg.ThumbPrefix, name)
}

// written names one blob key at one destination.
type written struct {
	store armada.BlobStore
	key   string
}

// Store persists artifact and its keywords. A duplicate wallpaper row yields OutcomeDuplicate and
// a nil error; every other failure yields OutcomeFailed and an error wrapping ErrPersistence.
func (c *Coordinator) Store(ctx context.Context, artifact armada.Artifact, keywords []string, source string) (armada.StoreResult, error) {
	ctx, span := c.tracer.Start(ctx, "persist.Store", trace.WithAttributes(
		attribute.String("wallpaper.name", artifact.Name),
		attribute.String("wallpaper.source", source),
	))
	defer span.End()

	result, err := c.store(ctx, artifact, keywords, source)
	metrics.ObserveStoreResult(string(result.Outcome))
	span.SetAttributes(attribute.String("store.outcome", string(result.Outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
	}
	return result, err
}

func (c *Coordinator) store(ctx context.Context, artifact armada.Artifact, keywords []string, source string) (armada.StoreResult, error) {
	failed := armada.StoreResult{Outcome: armada.OutcomeFailed}
	if strings.TrimSpace(artifact.Name) == "" {
		return failed, fmt.Errorf("artifact has no name: %w", armada.ErrPersistence)
	}
	logger := c.logger.With(zap.String("name", artifact.Name))
	fullKey, thumbKey := c.Keys(artifact.Name)
	contentType := artifact.Format.ContentType()

	// A phase-1 failure clears both keys, including blobs left by an earlier interrupted store,
	// so no blob survives without its record.
	both := []written{{c.full, fullKey}, {c.thumbs, thumbKey}}
	var created []written
	fullURI, wrote, err := c.writeBlob(ctx, c.full, fullKey, contentType, artifact.Image)
	if wrote {
		created = append(created, written{c.full, fullKey})
	}
	if err != nil {
		return failed, c.abort(ctx, logger, fmt.Errorf("write image %s: %w", fullKey, err), both)
	}
	thumbURI, wrote, err := c.writeBlob(ctx, c.thumbs, thumbKey, contentType, artifact.Thumbnail)
	if wrote {
		created = append(created, written{c.thumbs, thumbKey})
	}
	if err != nil {
		return failed, c.abort(ctx, logger, fmt.Errorf("write thumbnail %s: %w", thumbKey, err), both)
	}

	record := armada.WallpaperRecord{
		Name:      artifact.Name,
		Source:    source,
		Width:     artifact.Width,
		Height:    artifact.Height,
		BlobPath:  fullURI,
		ThumbPath: thumbURI,
		StoredAt:  c.clock.Now(),
	}

	tx, err := c.meta.Begin(ctx)
	if err != nil {
		return failed, c.abort(ctx, logger, fmt.Errorf("begin metadata transaction: %w", err), created)
	}
	if err := tx.InsertWallpaper(ctx, record); err != nil {
		rbErr := tx.Rollback(ctx)
		if errors.Is(err, armada.ErrDuplicate) {
			if rbErr != nil {
				logger.Warn("rollback after duplicate failed", zap.Error(rbErr))
			}
			logger.Info("wallpaper already recorded")
			return armada.StoreResult{Outcome: armada.OutcomeDuplicate, Record: record}, nil
		}
		cause := fmt.Errorf("insert wallpaper: %w", err)
		if rbErr != nil {
			cause = errors.Join(cause, fmt.Errorf("rollback metadata: %w", rbErr))
		}
		return failed, c.abort(ctx, logger, cause, created)
	}

	result := armada.StoreResult{Record: record}
	for _, word := range uniqueWords(keywords) {
		if err := tx.InsertKeyword(ctx, armada.KeywordRecord{Word: word, Name: artifact.Name}); err != nil {
			result.KeywordsFailed++
			logger.Warn("keyword insert failed", zap.String("word", word), zap.Error(err))
			continue
		}
		result.KeywordsWritten++
	}

	if err := tx.Commit(ctx); err != nil {
		return failed, c.abort(ctx, logger, fmt.Errorf("commit metadata: %w", err), created)
	}

	result.Outcome = armada.OutcomeStored
	if result.KeywordsFailed > 0 {
		result.Outcome = armada.OutcomePartialKeywords
	}
	logger.Debug("wallpaper stored",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("keywords_written", result.KeywordsWritten),
		zap.Int("keywords_failed", result.KeywordsFailed),
	)
	return result, nil
}

// writeBlob writes data at key unless an object is already there. wrote reports whether this
// call created the object.
func (c *Coordinator) writeBlob(ctx context.Context, store armada.BlobStore, key, contentType string, data []byte) (string, bool, error) {
	exists, err := store.Exists(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("check existence: %w", err)
	}
	if exists {
		if r, ok := store.(URIResolver); ok {
			return r.URI(key), false, nil
		}
		return key, false, nil
	}
	uri, err := store.Write(ctx, key, contentType, data)
	if err != nil {
		return "", false, err
	}
	if uri == "" {
		uri = key
	}
	return uri, true, nil
}

// abort deletes targets and returns cause joined with any delete errors, wrapped as
// ErrPersistence. After phase 2 fails, targets holds only the blobs this call created.
func (c *Coordinator) abort(ctx context.Context, logger *zap.Logger, cause error, targets []written) error {
	errs := []error{cause}
	if len(targets) > 0 {
		metrics.ObserveBlobRollback()
	}
	for _, t := range targets {
		if err := t.store.Delete(ctx, t.key); err != nil {
			logger.Error("blob rollback failed", zap.String("key", t.key), zap.Error(err))
			errs = append(errs, fmt.Errorf("rollback %s: %w", t.key, err))
		}
	}
	logger.Error("store failed", zap.Error(cause), zap.Int("blobs_rolled_back", len(targets)))
	return fmt.Errorf("%w: %w", armada.ErrPersistence, errors.Join(errs...))
}

func uniqueWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
