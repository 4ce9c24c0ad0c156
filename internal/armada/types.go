package armada

import (
	"net/http"
	"time"
)

// ImageFormat names a decoded image encoding.
type ImageFormat string

// Supported image formats.
const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
)

// Extension returns the file extension used when naming artifacts of this format.
func (f ImageFormat) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// ContentType returns the MIME type written alongside blobs of this format.
func (f ImageFormat) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// FeedItem is one unit of content offered by a feed for a single poll.
type FeedItem struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
	Adult     bool   `json:"adult"`
}

// Artifact is a resolved, validated wallpaper plus its derived thumbnail.
type Artifact struct {
	SourceURL   string
	Image       []byte
	Width       int
	Height      int
	Format      ImageFormat
	Name        string
	Thumbnail   []byte
	ThumbWidth  int
	ThumbHeight int
}

// WallpaperRecord is the metadata row persisted for each stored artifact.
type WallpaperRecord struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	BlobPath  string    `json:"blob_path"`
	ThumbPath string    `json:"thumb_path"`
	StoredAt  time.Time `json:"stored_at"`
}

// KeywordRecord links a tag to a stored wallpaper.
type KeywordRecord struct {
	Word string `json:"word"`
	Name string `json:"name"`
}

// StoreOutcome summarizes a persistence attempt.
type StoreOutcome string

// Store outcomes reported by the persistence coordinator.
const (
	OutcomeStored          StoreOutcome = "stored"
	OutcomeDuplicate       StoreOutcome = "duplicate"
	OutcomePartialKeywords StoreOutcome = "partial_keywords"
	OutcomeFailed          StoreOutcome = "failed"
)

// StoreResult is returned by the persistence coordinator for every Store call.
type StoreResult struct {
	Outcome         StoreOutcome
	Record          WallpaperRecord
	KeywordsWritten int
	KeywordsFailed  int
}

// Persisted reports whether a new wallpaper row was committed.
func (r StoreResult) Persisted() bool {
	return r.Outcome == OutcomeStored || r.Outcome == OutcomePartialKeywords
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// StoredEvent is published after a wallpaper row commits.
type StoredEvent struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Feed      string    `json:"feed"`
	BlobPath  string    `json:"blob_path"`
	ThumbPath string    `json:"thumb_path"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Keywords  []string  `json:"keywords"`
	StoredAt  time.Time `json:"stored_at"`
}
