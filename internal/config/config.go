// Package config loads and validates armada configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
	"github.com/JakeFAU/wallpaper-armada/internal/media"
	"github.com/JakeFAU/wallpaper-armada/internal/source"
)

// Storage and metadata providers.
const (
	ProviderLocal    = "local"
	ProviderGCS      = "gcs"
	ProviderMemory   = "memory"
	ProviderPostgres = "postgres"
	ProviderSQLite   = "sqlite"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Armada    ArmadaConfig    `mapstructure:"armada"`
	Sources   []source.Config `mapstructure:"sources"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ArmadaConfig governs the fleet loop.
type ArmadaConfig struct {
	PollIntervalSeconds int  `mapstructure:"poll_interval_seconds"`
	Concurrent          bool `mapstructure:"concurrent"`
	// FeedBaseURL overrides the Reddit host.
	FeedBaseURL string `mapstructure:"feed_base_url"`
}

// ResolverConfig mirrors media.Config plus the page fetcher toggle.
type ResolverConfig struct {
	MinWidth         int              `mapstructure:"min_width"`
	MinHeight        int              `mapstructure:"min_height"`
	MinAspect        float64          `mapstructure:"min_aspect"`
	MaxAspect        float64          `mapstructure:"max_aspect"`
	ThumbWidth       int              `mapstructure:"thumb_width"`
	ThumbHeight      int              `mapstructure:"thumb_height"`
	JPEGQuality      int              `mapstructure:"jpeg_quality"`
	NameLength       int              `mapstructure:"name_length"`
	MaxImageBytes    int              `mapstructure:"max_image_bytes"`
	MaxPixels        int              `mapstructure:"max_pixels"`
	DirectExtensions []string         `mapstructure:"direct_extensions"`
	Hosts            []media.HostRule `mapstructure:"hosts"`
	HeadlessPages    bool             `mapstructure:"headless_pages"`
}

// HTTPConfig configures the outbound HTTP fetcher.
type HTTPConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	PerHostBurst   int     `mapstructure:"per_host_burst"`
	RespectRobots  bool    `mapstructure:"respect_robots"`
}

// HeadlessConfig configures the chromedp page fetcher.
type HeadlessConfig struct {
	MaxParallel   int `mapstructure:"max_parallel"`
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
}

// StorageConfig selects and configures the blob store.
type StorageConfig struct {
	Provider    string `mapstructure:"provider"`
	BaseDir     string `mapstructure:"base_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	FullPrefix  string `mapstructure:"full_prefix"`
	ThumbPrefix string `mapstructure:"thumb_prefix"`
	// ThumbBucket stores thumbnails in a separate bucket when the provider is gcs.
	ThumbBucket string `mapstructure:"thumb_bucket"`
}

// MetadataConfig selects and configures the relational store.
type MetadataConfig struct {
	Provider       string `mapstructure:"provider"`
	DSN            string `mapstructure:"dsn"`
	MaxConns       int    `mapstructure:"max_conns"`
	WallpaperTable string `mapstructure:"wallpaper_table"`
	KeywordTable   string `mapstructure:"keyword_table"`
	EnsureSchema   bool   `mapstructure:"ensure_schema"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Enabled reports whether stored-wallpaper events go to Pub/Sub.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.TopicName != ""
}

// ServerConfig controls the operational HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TelemetryConfig names the service in traces.
type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARMADA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %v: %w", err, armada.ErrConfiguration)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %v: %w", err, armada.ErrConfiguration)
	}
	if len(cfg.Resolver.Hosts) == 0 {
		cfg.Resolver.Hosts = media.DefaultHosts()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	res := media.DefaultConfig()
	v.SetDefault("armada.poll_interval_seconds", 30)
	v.SetDefault("armada.concurrent", false)
	v.SetDefault("sources", []map[string]any{{
		"type":       source.TypeSubreddit,
		"subreddit":  "wallpapers",
		"listing":    "hot",
		"item_limit": source.DefaultItemLimit,
		"cache_size": source.DefaultCacheSize,
	}})
	v.SetDefault("resolver.min_width", res.MinWidth)
	v.SetDefault("resolver.min_height", res.MinHeight)
	v.SetDefault("resolver.min_aspect", res.MinAspect)
	v.SetDefault("resolver.max_aspect", res.MaxAspect)
	v.SetDefault("resolver.thumb_width", res.ThumbWidth)
	v.SetDefault("resolver.thumb_height", res.ThumbHeight)
	v.SetDefault("resolver.jpeg_quality", res.JPEGQuality)
	v.SetDefault("resolver.name_length", res.NameLength)
	v.SetDefault("resolver.max_image_bytes", res.MaxImageBytes)
	v.SetDefault("resolver.max_pixels", res.MaxPixels)
	v.SetDefault("resolver.direct_extensions", res.DirectExtensions)
	v.SetDefault("resolver.headless_pages", false)
	v.SetDefault("http.user_agent", "wallpaper-armada/0.1 (+https://github.com/JakeFAU/wallpaper-armada)")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.per_host_rps", 2.0)
	v.SetDefault("http.per_host_burst", 1)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("storage.provider", ProviderLocal)
	v.SetDefault("storage.base_dir", "data/wallpapers")
	v.SetDefault("storage.full_prefix", "wallpapers")
	v.SetDefault("storage.thumb_prefix", "thumbnails")
	v.SetDefault("metadata.provider", ProviderSQLite)
	v.SetDefault("metadata.dsn", "data/armada.db")
	v.SetDefault("metadata.max_conns", 4)
	v.SetDefault("metadata.wallpaper_table", "wallpapers")
	v.SetDefault("metadata.keyword_table", "keywords")
	v.SetDefault("metadata.ensure_schema", true)
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.development", false)
	v.SetDefault("telemetry.service_name", "wallpaper-armada")
}

// Validate enforces required values and reasonable limits. Every failure wraps
// armada.ErrConfiguration.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", armada.ErrConfiguration, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.Armada.PollIntervalSeconds <= 0 {
		return fmt.Errorf("armada.poll_interval_seconds must be > 0")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("sources must list at least one source")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.PerHostRPS < 0 || c.HTTP.PerHostBurst < 0 {
		return fmt.Errorf("http.per_host_rps and http.per_host_burst must be >= 0")
	}
	if c.Resolver.HeadlessPages && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when resolver.headless_pages is enabled")
	}
	switch c.Storage.Provider {
	case ProviderLocal:
		if strings.TrimSpace(c.Storage.BaseDir) == "" {
			return fmt.Errorf("storage.base_dir is required for the local provider")
		}
	case ProviderGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs provider")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("storage.provider %q is not one of local, gcs, memory", c.Storage.Provider)
	}
	switch c.Metadata.Provider {
	case ProviderPostgres, ProviderSQLite:
		if c.Metadata.DSN == "" {
			return fmt.Errorf("metadata.dsn is required for the %s provider", c.Metadata.Provider)
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("metadata.provider %q is not one of postgres, sqlite, memory", c.Metadata.Provider)
	}
	if c.Metadata.MaxConns < 0 || c.Metadata.MaxConns > 1000 {
		return fmt.Errorf("metadata.max_conns must be in [0, 1000]")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be in [1, 65535]")
	}
	return nil
}

// PollInterval returns the pause between fleet cycles.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Armada.PollIntervalSeconds) * time.Second
}

// HTTPTimeout returns the per-request fetch timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// MediaConfig converts the resolver section into a media.Config.
func (c Config) MediaConfig() media.Config {
	return media.Config{
		MinWidth:         c.Resolver.MinWidth,
		MinHeight:        c.Resolver.MinHeight,
		MinAspect:        c.Resolver.MinAspect,
		MaxAspect:        c.Resolver.MaxAspect,
		ThumbWidth:       c.Resolver.ThumbWidth,
		ThumbHeight:      c.Resolver.ThumbHeight,
		JPEGQuality:      c.Resolver.JPEGQuality,
		NameLength:       c.Resolver.NameLength,
		MaxImageBytes:    c.Resolver.MaxImageBytes,
		MaxPixels:        c.Resolver.MaxPixels,
		DirectExtensions: c.Resolver.DirectExtensions,
		Hosts:            c.Resolver.Hosts,
	}
}
