package media

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
)

// HostRule describes an indirect host: pages whose URL contains Match are fetched and scanned
// with Pattern for an embedded direct-image link. The first capture group (or the group named
// "link") is the link; Scheme is prepended when the capture carries none.
type HostRule struct {
	Match   string `mapstructure:"match"`
	Pattern string `mapstructure:"pattern"`
	Scheme  string `mapstructure:"scheme"`
}

// Config controls resolution, validation, and thumbnail derivation.
type Config struct {
	MinWidth  int
	MinHeight int
	// MinAspect is inclusive and MaxAspect exclusive: MinAspect <= w/h < MaxAspect.
	MinAspect   float64
	MaxAspect   float64
	ThumbWidth  int
	ThumbHeight int
	JPEGQuality int
	NameLength  int
	// MaxImageBytes rejects larger downloads. Zero disables the check.
	MaxImageBytes    int
	// MaxPixels rejects images whose header declares more pixels, before the full decode.
	// Zero disables the check.
	MaxPixels        int
	DirectExtensions []string
	Hosts            []HostRule
}

// DefaultHosts returns the built-in indirect host rules.
func DefaultHosts() []HostRule {
	return []HostRule{{
		Match:   "imgur.com/",
		Pattern: `(?P<link>i\.imgur\.com/\w+\.\w+)"`,
		Scheme:  "https://",
	}}
}

// DefaultConfig returns the stock resolver policy.
func DefaultConfig() Config {
	return Config{
		MinWidth:         1024,
		MinHeight:        768,
		MinAspect:        1.0,
		MaxAspect:        2.0,
		ThumbWidth:       450,
		ThumbHeight:      300,
		JPEGQuality:      90,
		NameLength:       10,
		MaxImageBytes:    25 << 20,
		MaxPixels:        50_000_000,
		DirectExtensions: []string{"jpg", "jpeg", "png"},
		Hosts:            DefaultHosts(),
	}
}

type compiledRule struct {
	match   string
	pattern *regexp.Regexp
	group   int
	scheme  string
}

func (c Config) check() error {
	switch {
	case c.MinWidth < 0 || c.MinHeight < 0:
		return fmt.Errorf("minimum dimensions must be >= 0: %w", armada.ErrConfiguration)
	case c.MinAspect <= 0 || c.MaxAspect <= c.MinAspect:
		return fmt.Errorf("aspect bounds must satisfy 0 < min < max, got [%v, %v): %w",
			c.MinAspect, c.MaxAspect, armada.ErrConfiguration)
	case c.ThumbWidth <= 0 || c.ThumbHeight <= 0:
		return fmt.Errorf("thumbnail box must be positive, got %dx%d: %w",
			c.ThumbWidth, c.ThumbHeight, armada.ErrConfiguration)
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return fmt.Errorf("jpeg quality must be in [1, 100], got %d: %w", c.JPEGQuality, armada.ErrConfiguration)
	case c.NameLength < 1 || c.NameLength > 32:
		return fmt.Errorf("name length must be in [1, 32], got %d: %w", c.NameLength, armada.ErrConfiguration)
	case c.MaxImageBytes < 0:
		return fmt.Errorf("max image bytes must be >= 0: %w", armada.ErrConfiguration)
	case c.MaxPixels < 0:
		return fmt.Errorf("max pixels must be >= 0: %w", armada.ErrConfiguration)
	case len(c.DirectExtensions) == 0:
		return fmt.Errorf("at least one direct extension is required: %w", armada.ErrConfiguration)
	}
	return nil
}

func compileRules(rules []HostRule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if strings.TrimSpace(rule.Match) == "" {
			return nil, fmt.Errorf("host rule match is required: %w", armada.ErrConfiguration)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile host pattern %q: %v: %w", rule.Pattern, err, armada.ErrConfiguration)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("host pattern %q needs a capture group: %w", rule.Pattern, armada.ErrConfiguration)
		}
		group := 1
		if idx := re.SubexpIndex("link"); idx > 0 {
			group = idx
		}
		scheme := rule.Scheme
		if scheme == "" {
			scheme = "https://"
		}
		out = append(out, compiledRule{match: rule.Match, pattern: re, group: group, scheme: scheme})
	}
	return out, nil
}

// extract returns the embedded direct-image link from body, if any.
func (r compiledRule) extract(body []byte) (string, bool) {
	m := r.pattern.FindSubmatch(body)
	if m == nil || len(m[r.group]) == 0 {
		return "", false
	}
	link := string(m[r.group])
	if strings.Contains(link, "://") {
		return link, true
	}
	return r.scheme + strings.TrimPrefix(link, "//"), true
}
