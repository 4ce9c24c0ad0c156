// Package app builds the armada from configuration and owns the lifetime of its long-lived
// services: fetchers, stores, publisher, fleet, and the ops HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/wallpaper-armada/internal/api"
	"github.com/JakeFAU/wallpaper-armada/internal/armada"
	"github.com/JakeFAU/wallpaper-armada/internal/config"
	collyfetcher "github.com/JakeFAU/wallpaper-armada/internal/fetcher/colly"
	"github.com/JakeFAU/wallpaper-armada/internal/fetcher/headless"
	"github.com/JakeFAU/wallpaper-armada/internal/fleet"
	"github.com/JakeFAU/wallpaper-armada/internal/media"
	"github.com/JakeFAU/wallpaper-armada/internal/metrics"
	"github.com/JakeFAU/wallpaper-armada/internal/persist"
	"github.com/JakeFAU/wallpaper-armada/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/wallpaper-armada/internal/publisher/pubsub"
	"github.com/JakeFAU/wallpaper-armada/internal/source"
	"github.com/JakeFAU/wallpaper-armada/internal/storage/gcs"
	"github.com/JakeFAU/wallpaper-armada/internal/storage/local"
	"github.com/JakeFAU/wallpaper-armada/internal/storage/memory"
	"github.com/JakeFAU/wallpaper-armada/internal/storage/postgres"
	"github.com/JakeFAU/wallpaper-armada/internal/storage/sqlite"
	"github.com/JakeFAU/wallpaper-armada/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired armada.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	fleet  *fleet.Fleet
	server *http.Server
	tracer *sdktrace.TracerProvider

	closers []closer
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Option overrides a dependency New would otherwise build from the config.
type Option func(*overrides)

type overrides struct {
	blobs     armada.BlobStore
	meta      armada.MetadataStore
	publisher armada.Publisher
	fetcher   armada.Fetcher
}

// WithBlobStore replaces the configured blob store for both full images and thumbnails.
func WithBlobStore(store armada.BlobStore) Option {
	return func(o *overrides) { o.blobs = store }
}

// WithMetadataStore replaces the configured metadata store.
func WithMetadataStore(store armada.MetadataStore) Option {
	return func(o *overrides) { o.meta = store }
}

// WithPublisher replaces the Pub/Sub publisher.
func WithPublisher(p armada.Publisher) Option {
	return func(o *overrides) { o.publisher = p }
}

// WithFetcher replaces the colly fetcher used for feeds and images.
func WithFetcher(f armada.Fetcher) Option {
	return func(o *overrides) { o.fetcher = f }
}

// New wires every component named by cfg. On failure, resources opened so far are closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	metrics.Init()
	tp, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracer = tp
	a.onClose("tracer", tp.Shutdown)

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = a.httpFetcher()
	}
	resolver, err := a.resolver(fetcher)
	if err != nil {
		return nil, err
	}

	var checks []api.ReadinessCheck
	blobs, thumbs, blobChecks, err := a.blobStores(ctx, o.blobs)
	if err != nil {
		return nil, err
	}
	checks = append(checks, blobChecks...)

	meta, metaCheck, err := a.metadataStore(ctx, o.meta)
	if err != nil {
		return nil, err
	}
	if metaCheck != nil {
		checks = append(checks, *metaCheck)
	}

	publisher := o.publisher
	if publisher == nil && cfg.PubSub.Enabled() {
		if publisher, err = a.pubsubPublisher(ctx); err != nil {
			return nil, err
		}
	}

	coordinator, err := persist.New(
		persist.Config{FullPrefix: cfg.Storage.FullPrefix, ThumbPrefix: cfg.Storage.ThumbPrefix},
		blobs, meta, logger, persist.WithThumbStore(thumbs),
	)
	if err != nil {
		return nil, fmt.Errorf("build coordinator: %w", err)
	}

	f, err := fleet.New(cfg.PollInterval(), logger, fleet.WithConcurrent(cfg.Armada.Concurrent))
	if err != nil {
		return nil, err
	}
	deps := source.Deps{
		Fetcher:     fetcher,
		FeedBaseURL: cfg.Armada.FeedBaseURL,
		Resolver:    resolver,
		Coordinator: coordinator,
		Publisher:   publisher,
		Topic:       cfg.PubSub.TopicName,
		Logger:      logger,
	}
	for i, sc := range cfg.Sources {
		src, err := source.New(sc, deps)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		if err := f.Add(src); err != nil {
			return nil, err
		}
	}
	a.fleet = f

	if cfg.Server.Enabled {
		a.server = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewServer(logger, checks...).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	logger.Info("armada initialized",
		zap.Int("sources", f.Len()),
		zap.String("storage", cfg.Storage.Provider),
		zap.String("metadata", cfg.Metadata.Provider),
		zap.Bool("pubsub", publisher != nil),
		zap.Bool("server", a.server != nil),
	)
	return a, nil
}

func (a *App) httpFetcher() armada.Fetcher {
	maxBody := 0
	if a.cfg.Resolver.MaxImageBytes > 0 {
		// One extra byte lets the resolver tell an oversized image from one exactly at the cap.
		maxBody = a.cfg.Resolver.MaxImageBytes + 1
	}
	return collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.HTTP.UserAgent,
		RespectRobots: a.cfg.HTTP.RespectRobots,
		Timeout:       a.cfg.HTTPTimeout(),
		MaxBodySize:   maxBody,
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.HTTP.PerHostRPS,
			DefaultBurst: a.cfg.HTTP.PerHostBurst,
		}),
	})
}

func (a *App) resolver(images armada.Fetcher) (*media.Resolver, error) {
	var opts []media.Option
	if a.cfg.Resolver.HeadlessPages {
		pages, err := headless.NewChromedp(headless.Config{
			MaxParallel:       a.cfg.Headless.MaxParallel,
			UserAgent:         a.cfg.HTTP.UserAgent,
			NavigationTimeout: time.Duration(a.cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		a.onClose("headless", func(context.Context) error {
			pages.Close()
			return nil
		})
		opts = append(opts, media.WithPageFetcher(pages))
	}
	r, err := media.New(a.cfg.MediaConfig(), images, a.logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("build resolver: %w", err)
	}
	return r, nil
}

func (a *App) blobStores(ctx context.Context, override armada.BlobStore) (armada.BlobStore, armada.BlobStore, []api.ReadinessCheck, error) {
	if override != nil {
		return override, override, nil, nil
	}
	sc := a.cfg.Storage
	switch sc.Provider {
	case config.ProviderMemory:
		a.logger.Warn("using in-memory blob store; wallpapers are lost on exit")
		store := memory.NewBlobStore()
		return store, store, nil, nil
	case config.ProviderLocal:
		store, err := local.New(local.Config{BaseDir: sc.BaseDir})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init local blob store: %w", err)
		}
		return store, store, nil, nil
	case config.ProviderGCS:
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.onClose("gcs", func(context.Context) error { return client.Close() })
		full, err := gcs.New(client, gcs.Config{Bucket: sc.GCSBucket}, a.logger)
		if err != nil {
			return nil, nil, nil, err
		}
		checks := []api.ReadinessCheck{{Name: "bucket:" + sc.GCSBucket, Check: full.CheckBucket}}
		thumbs := full
		if sc.ThumbBucket != "" && sc.ThumbBucket != sc.GCSBucket {
			if thumbs, err = gcs.New(client, gcs.Config{Bucket: sc.ThumbBucket}, a.logger); err != nil {
				return nil, nil, nil, err
			}
			checks = append(checks, api.ReadinessCheck{Name: "bucket:" + sc.ThumbBucket, Check: thumbs.CheckBucket})
		}
		return full, thumbs, checks, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage provider %q: %w", sc.Provider, armada.ErrConfiguration)
	}
}

func (a *App) metadataStore(ctx context.Context, override armada.MetadataStore) (armada.MetadataStore, *api.ReadinessCheck, error) {
	if override != nil {
		return override, nil, nil
	}
	mc := a.cfg.Metadata
	switch mc.Provider {
	case config.ProviderMemory:
		a.logger.Warn("using in-memory metadata store; records are lost on exit")
		return memory.NewMetadataStore(), nil, nil
	case config.ProviderSQLite:
		if err := ensureParentDir(mc.DSN); err != nil {
			return nil, nil, err
		}
		store, err := sqlite.Open(ctx, mc.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite metadata store: %w", err)
		}
		a.onClose("sqlite", func(context.Context) error { return store.Close() })
		return store, &api.ReadinessCheck{Name: "metadata", Check: store.Ping}, nil
	case config.ProviderPostgres:
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            mc.DSN,
			WallpaperTable: mc.WallpaperTable,
			KeywordTable:   mc.KeywordTable,
			MaxConns:       int32(mc.MaxConns), //nolint:gosec // bounded by config validation
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres metadata store: %w", err)
		}
		a.onClose("postgres", func(context.Context) error {
			store.Close()
			return nil
		})
		if mc.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return nil, nil, fmt.Errorf("ensure schema: %w", err)
			}
		}
		return store, &api.ReadinessCheck{Name: "metadata", Check: store.Ping}, nil
	default:
		return nil, nil, fmt.Errorf("unknown metadata provider %q: %w", mc.Provider, armada.ErrConfiguration)
	}
}

func (a *App) pubsubPublisher(ctx context.Context) (armada.Publisher, error) {
	client, err := gpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	a.onClose("pubsub client", func(context.Context) error { return client.Close() })
	p, err := pubsubpublisher.New(client, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, err
	}
	// Closers run in reverse, so pending publishes flush before the client closes.
	a.onClose("pubsub topics", func(context.Context) error {
		p.Stop()
		return nil
	})
	return p, nil
}

func ensureParentDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metadata directory: %v: %w", err, armada.ErrConfiguration)
	}
	return nil
}

func (a *App) onClose(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Fleet exposes the scheduler, mainly so callers can add sources after New.
func (a *App) Fleet() *fleet.Fleet {
	return a.fleet
}

// Handler returns the ops HTTP handler, or nil when the server is disabled.
func (a *App) Handler() http.Handler {
	if a.server == nil {
		return nil
	}
	return a.server.Handler
}

// Run drives the fleet and the ops server until ctx is canceled. A server failure stops the
// fleet. Cancellation is not reported as an error.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.fleet.Run(gctx)
	})
	if a.server != nil {
		g.Go(func() error {
			a.logger.Info("ops server started", zap.String("addr", a.server.Addr))
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("ops server shutdown error", zap.Error(err))
			}
			return nil
		})
	}

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Close releases resources in reverse order of creation.
func (a *App) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("close failed", zap.String("resource", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}
