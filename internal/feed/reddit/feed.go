// Package reddit reads subreddit listings from Reddit's public JSON endpoints.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
)

// DefaultBaseURL is the public Reddit host.
const DefaultBaseURL = "https://www.reddit.com"

var listings = map[string]struct{}{"hot": {}, "new": {}, "top": {}, "rising": {}}

// Config selects the subreddit listing to read.
type Config struct {
	BaseURL   string
	Subreddit string
	Listing   string
}

// Feed implements armada.Feed for one subreddit listing.
type Feed struct {
	base      string
	subreddit string
	listing   string
	fetcher   armada.Fetcher
}

var _ armada.Feed = (*Feed)(nil)

// New validates cfg and returns a Feed that downloads through fetcher.
func New(cfg Config, fetcher armada.Fetcher) (*Feed, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required: %w", armada.ErrConfiguration)
	}
	sub := strings.TrimPrefix(strings.TrimSpace(cfg.Subreddit), "r/")
	if sub == "" {
		return nil, fmt.Errorf("subreddit name is required: %w", armada.ErrConfiguration)
	}
	listing := strings.ToLower(strings.TrimSpace(cfg.Listing))
	if listing == "" {
		listing = "hot"
	}
	if _, ok := listings[listing]; !ok {
		return nil, fmt.Errorf("unknown listing %q: %w", cfg.Listing, armada.ErrConfiguration)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse base url: %v: %w", err, armada.ErrConfiguration)
	}
	return &Feed{base: base, subreddit: sub, listing: listing, fetcher: fetcher}, nil
}

// ListingURL returns the endpoint polled for limit items.
func (f *Feed) ListingURL(limit int) string {
	return fmt.Sprintf("%s/r/%s/%s.json?limit=%d&raw_json=1", f.base, url.PathEscape(f.subreddit), f.listing, limit)
}

type listing struct {
	Data struct {
		Children []struct {
			Data post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type post struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
	Over18    bool   `json:"over_18"`
}

// FetchRecent returns up to limit items from the listing. Posts without an id or URL are dropped.
func (f *Feed) FetchRecent(ctx context.Context, limit int) ([]armada.FeedItem, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d: %w", limit, armada.ErrConfiguration)
	}
	resp, err := f.fetcher.Fetch(ctx, armada.FetchRequest{
		URL:     f.ListingURL(limit),
		Headers: http.Header{"Accept": {"application/json"}},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch listing r/%s: %w", f.subreddit, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetch listing r/%s: status %d: %w", f.subreddit, resp.StatusCode, armada.ErrTransientFetch)
	}
	var doc listing
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("decode listing r/%s: %v: %w", f.subreddit, err, armada.ErrTransientFetch)
	}

	items := make([]armada.FeedItem, 0, len(doc.Data.Children))
	for _, child := range doc.Data.Children {
		p := child.Data
		if p.ID == "" || p.URL == "" {
			continue
		}
		items = append(items, armada.FeedItem{
			ID:        p.ID,
			URL:       p.URL,
			Title:     p.Title,
			Permalink: absolutePermalink(p.Permalink),
			Adult:     p.Over18,
		})
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func absolutePermalink(p string) string {
	if p == "" || strings.Contains(p, "://") {
		return p
	}
	return DefaultBaseURL + "/" + strings.TrimPrefix(p, "/")
}
