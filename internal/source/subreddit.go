package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
	"github.com/JakeFAU/wallpaper-armada/internal/dedup"
	"github.com/JakeFAU/wallpaper-armada/internal/metrics"
)

const tracerName = "github.com/JakeFAU/wallpaper-armada/internal/source"

// Item outcomes recorded besides the StoreOutcome values.
const (
	outcomeSeen      = "seen"
	outcomeFeedError = "feed_error"
	outcomePanic     = "panic"
)

// Subreddit polls one subreddit listing.
type Subreddit struct {
	name        string
	limit       int
	adultTag    string
	feed        armada.Feed
	resolver    armada.Resolver
	coordinator armada.Coordinator
	publisher   armada.Publisher
	topic       string
	logger      *zap.Logger
	tracer      trace.Tracer

	mu    sync.Mutex
	cache *dedup.Cache
}

var _ armada.Source = (*Subreddit)(nil)

// NewSubreddit validates cfg and builds the adapter around feed.
func NewSubreddit(cfg Config, feed armada.Feed, deps Deps) (*Subreddit, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if feed == nil || deps.Resolver == nil || deps.Coordinator == nil {
		return nil, fmt.Errorf("source r/%s needs a feed, resolver, and coordinator: %w", cfg.Subreddit, armada.ErrConfiguration)
	}
	cache, err := dedup.New(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := "r/" + cfg.Subreddit
	return &Subreddit{
		name:        name,
		limit:       cfg.ItemLimit,
		adultTag:    cfg.AdultTag,
		feed:        feed,
		resolver:    deps.Resolver,
		coordinator: deps.Coordinator,
		publisher:   deps.Publisher,
		topic:       deps.Topic,
		logger:      logger.Named("source").With(zap.String("source", name)),
		tracer:      otel.Tracer(tracerName),
		cache:       cache,
	}, nil
}

// Name identifies the adapter in logs and metrics.
func (s *Subreddit) Name() string {
	return s.name
}

// Crawl polls the feed once and processes every item. Feed and item failures are logged and
// counted, never returned.
func (s *Subreddit) Crawl(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "source.Crawl", trace.WithAttributes(attribute.String("source", s.name)))
	defer span.End()

	items, err := s.feed.FetchRecent(ctx, s.limit)
	if err != nil {
		metrics.ObserveItem(s.name, outcomeFeedError)
		s.logger.Warn("feed fetch failed", zap.String("kind", armada.Kind(err)), zap.Error(err))
		span.RecordError(err)
		return
	}
	s.logger.Debug("feed fetched", zap.Int("items", len(items)))
	span.SetAttributes(attribute.Int("feed.items", len(items)))

	for _, item := range items {
		if ctx.Err() != nil {
			s.logger.Info("crawl interrupted", zap.Error(ctx.Err()))
			return
		}
		s.process(ctx, item)
	}
}

func (s *Subreddit) process(ctx context.Context, item armada.FeedItem) {
	logger := s.logger.With(zap.String("item_id", item.ID), zap.String("url", item.URL))
	defer func() {
		if r := recover(); r != nil {
			metrics.ObserveItem(s.name, outcomePanic)
			logger.Error("item processing panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	id := item.ID
	if id == "" {
		id = item.URL
	}
	if s.cache.Has(id) {
		metrics.ObserveItem(s.name, outcomeSeen)
		return
	}
	// Marked before processing so a failing item is not retried every poll.
	s.cache.Add(id)

	artifact, err := s.resolver.Resolve(ctx, item.URL)
	if err != nil {
		kind := armada.Kind(err)
		metrics.ObserveItem(s.name, kind)
		switch {
		case errors.Is(err, armada.ErrTransientFetch):
			logger.Warn("media fetch failed", zap.Error(err))
		default:
			logger.Info("item skipped", zap.String("kind", kind), zap.Error(err))
		}
		return
	}

	keywords := TaggedKeywords(item.Title, item.Adult, s.adultTag)
	result, err := s.coordinator.Store(ctx, artifact, keywords, item.Permalink)
	if err != nil {
		metrics.ObserveItem(s.name, string(armada.OutcomeFailed))
		logger.Error("store failed", zap.String("name", artifact.Name), zap.Error(err))
		return
	}
	metrics.ObserveItem(s.name, string(result.Outcome))

	switch result.Outcome {
	case armada.OutcomeDuplicate:
		logger.Info("wallpaper already stored", zap.String("name", artifact.Name))
	case armada.OutcomePartialKeywords:
		logger.Warn("wallpaper stored with missing keywords",
			zap.String("name", artifact.Name),
			zap.Int("keywords_failed", result.KeywordsFailed),
		)
	default:
		logger.Info("wallpaper stored", zap.String("name", artifact.Name), zap.Strings("keywords", keywords))
	}
	if result.Persisted() {
		s.publish(ctx, logger, result, keywords)
	}
}

func (s *Subreddit) publish(ctx context.Context, logger *zap.Logger, result armada.StoreResult, keywords []string) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	rec := result.Record
	event := armada.StoredEvent{
		Name:      rec.Name,
		Source:    rec.Source,
		Feed:      s.name,
		BlobPath:  rec.BlobPath,
		ThumbPath: rec.ThumbPath,
		Width:     rec.Width,
		Height:    rec.Height,
		Keywords:  keywords,
		StoredAt:  rec.StoredAt,
	}
	id, err := s.publisher.Publish(ctx, s.topic, event)
	if err != nil {
		logger.Warn("publish stored event failed", zap.String("name", rec.Name), zap.Error(err))
		return
	}
	logger.Debug("stored event published", zap.String("name", rec.Name), zap.String("message_id", id))
}
