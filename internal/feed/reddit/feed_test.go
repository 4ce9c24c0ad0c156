package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
	collyfetcher "github.com/JakeFAU/wallpaper-armada/internal/fetcher/colly"
)

const listingJSON = `{
  "kind": "Listing",
  "data": {
    "children": [
      {"kind": "t3", "data": {"id": "a1", "url": "https://i.redd.it/dunes.jpg", "title": "Dunes at dusk",
        "permalink": "/r/wallpapers/comments/a1/dunes_at_dusk/", "over_18": false}},
      {"kind": "t3", "data": {"id": "b2", "url": "https://imgur.com/gallery/xyz", "title": "Beach",
        "permalink": "/r/wallpapers/comments/b2/beach/", "over_18": true}},
      {"kind": "t3", "data": {"id": "", "url": "https://i.redd.it/noid.jpg"}},
      {"kind": "t3", "data": {"id": "c3", "url": "", "title": "self post"}}
    ]
  }
}`

type stubFetcher struct {
	resp armada.FetchResponse
	err  error
	reqs []armada.FetchRequest
}

func (s *stubFetcher) Fetch(_ context.Context, req armada.FetchRequest) (armada.FetchResponse, error) {
	s.reqs = append(s.reqs, req)
	return s.resp, s.err
}

func TestFetchRecentParsesListing(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{resp: armada.FetchResponse{StatusCode: http.StatusOK, Body: []byte(listingJSON)}}
	feed, err := New(Config{Subreddit: "wallpapers"}, fetcher)
	require.NoError(t, err)

	items, err := feed.FetchRecent(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, armada.FeedItem{
		ID:        "a1",
		URL:       "https://i.redd.it/dunes.jpg",
		Title:     "Dunes at dusk",
		Permalink: "https://www.reddit.com/r/wallpapers/comments/a1/dunes_at_dusk/",
	}, items[0])
	assert.True(t, items[1].Adult)

	require.Len(t, fetcher.reqs, 1)
	assert.Equal(t, "https://www.reddit.com/r/wallpapers/hot.json?limit=25&raw_json=1", fetcher.reqs[0].URL)
	assert.Equal(t, "application/json", fetcher.reqs[0].Headers.Get("Accept"))
}

func TestFetchRecentRespectsLimit(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{resp: armada.FetchResponse{StatusCode: http.StatusOK, Body: []byte(listingJSON)}}
	feed, err := New(Config{Subreddit: "r/wallpapers", Listing: "NEW"}, fetcher)
	require.NoError(t, err)

	items, err := feed.FetchRecent(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "https://www.reddit.com/r/wallpapers/new.json?limit=1&raw_json=1", fetcher.reqs[0].URL)

	_, err = feed.FetchRecent(context.Background(), 0)
	assert.Error(t, err)
}

func TestFetchRecentErrors(t *testing.T) {
	t.Parallel()

	testCases := map[string]*stubFetcher{
		"status":    {resp: armada.FetchResponse{StatusCode: http.StatusTooManyRequests}},
		"bad json":  {resp: armada.FetchResponse{StatusCode: http.StatusOK, Body: []byte("<html>")}},
		"transport": {err: errors.New("dial tcp: timeout")},
	}
	for name, fetcher := range testCases {
		feed, err := New(Config{Subreddit: "wallpapers"}, fetcher)
		require.NoError(t, err)
		_, err = feed.FetchRecent(context.Background(), 10)
		assert.Error(t, err, name)
	}

	feed, err := New(Config{Subreddit: "wallpapers"}, testCases["status"])
	require.NoError(t, err)
	_, err = feed.FetchRecent(context.Background(), 10)
	assert.ErrorIs(t, err, armada.ErrTransientFetch)
}

func TestFetchRecentRejectsNonPositiveLimit(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{}
	feed, err := New(Config{Subreddit: "wallpapers"}, fetcher)
	require.NoError(t, err)
	for _, limit := range []int{0, -3} {
		_, err := feed.FetchRecent(context.Background(), limit)
		require.ErrorIs(t, err, armada.ErrConfiguration)
		assert.Equal(t, "configuration", armada.Kind(err))
	}
	assert.Empty(t, fetcher.reqs)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{}
	_, err := New(Config{}, fetcher)
	assert.ErrorIs(t, err, armada.ErrConfiguration)
	_, err = New(Config{Subreddit: "x", Listing: "controversial-ish"}, fetcher)
	assert.ErrorIs(t, err, armada.ErrConfiguration)
	_, err = New(Config{Subreddit: "x"}, nil)
	assert.ErrorIs(t, err, armada.ErrConfiguration)
}

func TestFetchRecentOverHTTP(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/r/earthporn/top.json", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listingJSON))
	}))
	defer server.Close()

	fetcher := collyfetcher.New(collyfetcher.Config{UserAgent: "armada-test", Timeout: 5 * time.Second})
	feed, err := New(Config{BaseURL: server.URL, Subreddit: "earthporn", Listing: "top"}, fetcher)
	require.NoError(t, err)

	for range 2 {
		items, err := feed.FetchRecent(context.Background(), 5)
		require.NoError(t, err)
		assert.Len(t, items, 2)
	}
	assert.EqualValues(t, 2, hits.Load(), "the same listing URL is fetched every poll")
}
