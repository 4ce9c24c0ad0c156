// Package fleet runs registered sources in repeating cycles separated by a fixed pause.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
	"github.com/JakeFAU/wallpaper-armada/internal/id/uuid"
	"github.com/JakeFAU/wallpaper-armada/internal/metrics"
)

const tracerName = "github.com/JakeFAU/wallpaper-armada/internal/fleet"

// ErrAlreadyRunning is returned by Run while another Run is active.
var ErrAlreadyRunning = errors.New("fleet is already running")

// Fleet owns an ordered, add-only list of sources.
type Fleet struct {
	interval   time.Duration
	concurrent bool
	ids        armada.IDGenerator
	logger     *zap.Logger
	tracer     trace.Tracer

	mu      sync.Mutex
	sources []armada.Source
	running bool
	cycles  int
}

// Option customizes a Fleet.
type Option func(*Fleet)

// WithConcurrent runs the sources of one cycle in parallel. Each source still processes its own
// items sequentially.
func WithConcurrent(enabled bool) Option {
	return func(f *Fleet) {
		f.concurrent = enabled
	}
}

// WithIDGenerator overrides the cycle ID generator.
func WithIDGenerator(ids armada.IDGenerator) Option {
	return func(f *Fleet) {
		if ids != nil {
			f.ids = ids
		}
	}
}

// New builds an idle Fleet that pauses interval between cycles.
func New(interval time.Duration, logger *zap.Logger, opts ...Option) (*Fleet, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s: %w", interval, armada.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fleet{
		interval: interval,
		ids:      uuid.NewPrefixed("cycle-"),
		logger:   logger.Named("fleet"),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Add appends src. Sources added while Run is active join from the next cycle.
func (f *Fleet) Add(src armada.Source) error {
	if src == nil {
		return fmt.Errorf("source is nil: %w", armada.ErrConfiguration)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, src)
	f.logger.Info("source added", zap.String("source", src.Name()), zap.Int("sources", len(f.sources)))
	return nil
}

// Len returns the number of registered sources.
func (f *Fleet) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

// Cycles returns the number of completed cycles.
func (f *Fleet) Cycles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cycles
}

// Run cycles until ctx is done and returns ctx.Err(). A cycle invokes each source's Crawl in
// insertion order and then sleeps the interval.
func (f *Fleet) Run(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return ErrAlreadyRunning
	}
	f.running = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	f.logger.Info("fleet started", zap.Duration("interval", f.interval), zap.Bool("concurrent", f.concurrent))
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("fleet stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-timer.C:
		}
		f.cycle(ctx)
		if err := ctx.Err(); err != nil {
			f.logger.Info("fleet stopped", zap.Error(err))
			return err
		}
		timer.Reset(f.interval)
	}
}

func (f *Fleet) cycle(ctx context.Context) {
	f.mu.Lock()
	sources := append([]armada.Source(nil), f.sources...)
	f.mu.Unlock()

	cycleID, err := f.ids.NewID()
	if err != nil {
		f.logger.Warn("cycle id generation failed", zap.Error(err))
	}
	logger := f.logger.With(zap.String("cycle_id", cycleID))
	ctx, span := f.tracer.Start(ctx, "fleet.Cycle", trace.WithAttributes(
		attribute.String("cycle.id", cycleID),
		attribute.Int("cycle.sources", len(sources)),
	))
	defer span.End()

	start := time.Now()
	logger.Debug("cycle started", zap.Int("sources", len(sources)))
	if f.concurrent {
		var g errgroup.Group
		for _, src := range sources {
			g.Go(func() error {
				crawl(ctx, logger, src)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, src := range sources {
			if ctx.Err() != nil {
				break
			}
			crawl(ctx, logger, src)
		}
	}
	elapsed := time.Since(start)
	metrics.ObserveCycle(elapsed)

	f.mu.Lock()
	f.cycles++
	f.mu.Unlock()
	logger.Info("cycle finished", zap.Int("sources", len(sources)), zap.Duration("elapsed", elapsed))
}

// crawl runs one source, containing any panic that escapes it.
func crawl(ctx context.Context, logger *zap.Logger, src armada.Source) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("source crawl panicked",
				zap.String("source", src.Name()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	src.Crawl(ctx)
}
