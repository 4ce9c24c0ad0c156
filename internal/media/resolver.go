// Package media resolves feed references into validated wallpaper artifacts: it locates the
// direct image (following at most one indirect host page), fetches and decodes it, enforces the
// size and aspect policy, derives a thumbnail, and names the result deterministically.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
	"github.com/JakeFAU/wallpaper-armada/internal/hash/md5"
	"github.com/JakeFAU/wallpaper-armada/internal/metrics"
)

// Resolver implements armada.Resolver.
type Resolver struct {
	cfg        Config
	rules      []compiledRule
	extensions map[string]struct{}
	images     armada.Fetcher
	pages      armada.Fetcher
	hasher     *md5.Hasher
	logger     *zap.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithPageFetcher uses fetcher for indirect host pages instead of the image fetcher.
func WithPageFetcher(fetcher armada.Fetcher) Option {
	return func(r *Resolver) {
		if fetcher != nil {
			r.pages = fetcher
		}
	}
}

// New builds a Resolver that downloads through images.
func New(cfg Config, images armada.Fetcher, logger *zap.Logger, opts ...Option) (*Resolver, error) {
	if images == nil {
		return nil, fmt.Errorf("image fetcher is required: %w", armada.ErrConfiguration)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	rules, err := compileRules(cfg.Hosts)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	extensions := make(map[string]struct{}, len(cfg.DirectExtensions))
	for _, ext := range cfg.DirectExtensions {
		extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	r := &Resolver{
		cfg:        cfg,
		rules:      rules,
		extensions: extensions,
		images:     images,
		pages:      images,
		hasher:     md5.New(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve produces a validated Artifact for rawURL. The artifact is named after rawURL even when
// the image itself was found on an indirect host page.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (armada.Artifact, error) {
	body, imageURL, err := r.locate(ctx, rawURL, false)
	if err != nil {
		return armada.Artifact{}, err
	}
	if imageURL != rawURL {
		r.logger.Debug("resolved indirect reference", zap.String("url", rawURL), zap.String("image_url", imageURL))
	}
	return r.build(rawURL, body)
}

// locate returns the image bytes for rawURL. An indirect host page is followed only when
// recursed is false, so at most two fetches happen per reference.
func (r *Resolver) locate(ctx context.Context, rawURL string, recursed bool) ([]byte, string, error) {
	if r.isDirect(rawURL) {
		body, err := r.fetch(ctx, r.images, rawURL, "image")
		if err != nil {
			return nil, "", err
		}
		return body, rawURL, nil
	}
	if recursed {
		return nil, "", fmt.Errorf("indirect page for %s linked a non-image %q: %w",
			rawURL, path.Ext(rawURL), armada.ErrResolution)
	}
	rule, ok := r.matchHost(rawURL)
	if !ok {
		return nil, "", fmt.Errorf("unsupported reference %s: %w", rawURL, armada.ErrResolution)
	}
	page, err := r.fetch(ctx, r.pages, rawURL, "page")
	if err != nil {
		return nil, "", err
	}
	link, ok := rule.extract(page)
	if !ok {
		return nil, "", fmt.Errorf("no embedded image on %s: %w", rawURL, armada.ErrResolution)
	}
	return r.locate(ctx, link, true)
}

func (r *Resolver) isDirect(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	_, ok := r.extensions[ext]
	return ok
}

func (r *Resolver) matchHost(rawURL string) (compiledRule, bool) {
	for _, rule := range r.rules {
		if strings.Contains(rawURL, rule.match) {
			return rule, true
		}
	}
	return compiledRule{}, false
}

func (r *Resolver) fetch(ctx context.Context, fetcher armada.Fetcher, rawURL, kind string) ([]byte, error) {
	resp, err := fetcher.Fetch(ctx, armada.FetchRequest{URL: rawURL})
	if err != nil {
		if errors.Is(err, armada.ErrTransientFetch) {
			return nil, fmt.Errorf("fetch %s %s: %w", kind, rawURL, err)
		}
		return nil, fmt.Errorf("fetch %s %s: %w: %w", kind, rawURL, armada.ErrTransientFetch, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetch %s %s: status %d: %w", kind, rawURL, resp.StatusCode, armada.ErrTransientFetch)
	}
	metrics.ObserveFetchBytes(kind, len(resp.Body))
	return resp.Body, nil
}

// build decodes, validates, thumbnails, and names the image.
func (r *Resolver) build(sourceURL string, body []byte) (armada.Artifact, error) {
	if r.cfg.MaxImageBytes > 0 && len(body) > r.cfg.MaxImageBytes {
		return armada.Artifact{}, fmt.Errorf("image %s is %d bytes, limit %d: %w",
			sourceURL, len(body), r.cfg.MaxImageBytes, armada.ErrValidation)
	}
	header, formatName, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return armada.Artifact{}, fmt.Errorf("decode %s: %v: %w", sourceURL, err, armada.ErrResolution)
	}
	format, thumbFormat, err := mapFormat(formatName)
	if err != nil {
		return armada.Artifact{}, fmt.Errorf("decode %s: %w", sourceURL, err)
	}
	if err := r.cfg.CheckDimensions(header.Width, header.Height); err != nil {
		return armada.Artifact{}, fmt.Errorf("image %s: %w", sourceURL, err)
	}
	if pixels := int64(header.Width) * int64(header.Height); r.cfg.MaxPixels > 0 && pixels > int64(r.cfg.MaxPixels) {
		return armada.Artifact{}, fmt.Errorf("image %s declares %d pixels, limit %d: %w",
			sourceURL, pixels, r.cfg.MaxPixels, armada.ErrValidation)
	}

	img, err := imaging.Decode(bytes.NewReader(body))
	if err != nil {
		return armada.Artifact{}, fmt.Errorf("decode %s: %v: %w", sourceURL, err, armada.ErrResolution)
	}
	thumb := imaging.Fit(img, r.cfg.ThumbWidth, r.cfg.ThumbHeight, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, thumbFormat, imaging.JPEGQuality(r.cfg.JPEGQuality)); err != nil {
		return armada.Artifact{}, fmt.Errorf("encode thumbnail for %s: %v: %w", sourceURL, err, armada.ErrResolution)
	}
	bounds := thumb.Bounds()

	return armada.Artifact{
		SourceURL:   sourceURL,
		Image:       body,
		Width:       header.Width,
		Height:      header.Height,
		Format:      format,
		Name:        r.Name(sourceURL, format),
		Thumbnail:   buf.Bytes(),
		ThumbWidth:  bounds.Dx(),
		ThumbHeight: bounds.Dy(),
	}, nil
}

// Name returns the deterministic artifact name for sourceURL and format.
func (r *Resolver) Name(sourceURL string, format armada.ImageFormat) string {
	return r.hasher.Prefix(sourceURL, r.cfg.NameLength) + format.Extension()
}

// CheckDimensions applies the size and aspect policy. The aspect range is [MinAspect, MaxAspect).
func (c Config) CheckDimensions(width, height int) error {
	if width < c.MinWidth || height < c.MinHeight || height <= 0 {
		return fmt.Errorf("dimensions %dx%d below minimum %dx%d: %w",
			width, height, c.MinWidth, c.MinHeight, armada.ErrValidation)
	}
	ratio := float64(width) / float64(height)
	if ratio < c.MinAspect || ratio >= c.MaxAspect {
		return fmt.Errorf("aspect ratio %.4f outside [%v, %v): %w", ratio, c.MinAspect, c.MaxAspect, armada.ErrValidation)
	}
	return nil
}

func mapFormat(name string) (armada.ImageFormat, imaging.Format, error) {
	switch name {
	case "jpeg":
		return armada.FormatJPEG, imaging.JPEG, nil
	case "png":
		return armada.FormatPNG, imaging.PNG, nil
	default:
		return "", 0, fmt.Errorf("unsupported format %q: %w", name, armada.ErrResolution)
	}
}
