// Package source implements the feed adapters polled by the fleet. Each adapter reads its feed,
// skips items it has seen recently, resolves the rest into artifacts, and persists them.
package source

import (
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
	"github.com/JakeFAU/wallpaper-armada/internal/feed/reddit"
)

// Adapter types accepted by New.
const (
	TypeSubreddit = "subreddit"
)

// Limits for adapter configuration.
const (
	MaxItemLimit     = 50
	DefaultItemLimit = 25
	MaxCacheSize     = 1000
	DefaultCacheSize = 50
)

// Config describes one adapter entry from the sources list.
type Config struct {
	Type      string `mapstructure:"type"`
	Subreddit string `mapstructure:"subreddit"`
	Listing   string `mapstructure:"listing"`
	ItemLimit int    `mapstructure:"item_limit"`
	CacheSize int    `mapstructure:"cache_size"`
	// AdultTag is appended to keywords of adult items. Empty means AdultTag.
	AdultTag string `mapstructure:"adult_tag"`
}

// Deps carries the shared capabilities adapters are built from.
type Deps struct {
	// Fetcher downloads feed documents when Feed is nil.
	Fetcher armada.Fetcher
	// FeedBaseURL overrides the Reddit host, mainly for tests.
	FeedBaseURL string
	// Feed replaces the feed New would build from the config.
	Feed        armada.Feed
	Resolver    armada.Resolver
	Coordinator armada.Coordinator
	// Publisher and Topic are optional. Stored wallpapers are announced when both are set.
	Publisher armada.Publisher
	Topic     string
	Logger    *zap.Logger
}

// New builds the adapter named by cfg.Type.
func New(cfg Config, deps Deps) (armada.Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case TypeSubreddit:
		feed := deps.Feed
		if feed == nil {
			f, err := reddit.New(reddit.Config{
				BaseURL:   deps.FeedBaseURL,
				Subreddit: cfg.Subreddit,
				Listing:   cfg.Listing,
			}, deps.Fetcher)
			if err != nil {
				return nil, fmt.Errorf("source %q: %w", cfg.Subreddit, err)
			}
			feed = f
		}
		return NewSubreddit(cfg, feed, deps)
	default:
		return nil, fmt.Errorf("unknown source type %q: %w", cfg.Type, armada.ErrConfiguration)
	}
}

// normalize applies defaults and enforces limits.
func (c Config) normalize() (Config, error) {
	c.Subreddit = strings.TrimPrefix(strings.TrimSpace(c.Subreddit), "r/")
	if c.Subreddit == "" {
		return c, fmt.Errorf("subreddit name cannot be empty: %w", armada.ErrConfiguration)
	}
	if c.ItemLimit == 0 {
		c.ItemLimit = DefaultItemLimit
	}
	if c.ItemLimit < 1 || c.ItemLimit > MaxItemLimit {
		return c, fmt.Errorf("item_limit must be in [1, %d], got %d: %w", MaxItemLimit, c.ItemLimit, armada.ErrConfiguration)
	}
	if c.CacheSize == 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.CacheSize < 1 || c.CacheSize > MaxCacheSize {
		return c, fmt.Errorf("cache_size must be in [1, %d], got %d: %w", MaxCacheSize, c.CacheSize, armada.ErrConfiguration)
	}
	c.AdultTag = strings.ToLower(strings.TrimSpace(c.AdultTag))
	if c.AdultTag == "" {
		c.AdultTag = AdultTag
	}
	if strings.ContainsFunc(c.AdultTag, unicode.IsSpace) {
		return c, fmt.Errorf("adult_tag %q must be a single word: %w", c.AdultTag, armada.ErrConfiguration)
	}
	return c, nil
}
