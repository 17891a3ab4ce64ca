package model

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// FetchTask represents a single image fetch
type FetchTask struct {
	ID               string
	URL              string
	Status           TaskStatus
	Priority         float64   // resolved download priority
	ScaleFactor      float64   // resolved image scale
	CacheName        string    // name of the resolved target cache
	DownloaderName   string    // name of the resolved downloader
	ForceRefresh     bool      // cache lookup was skipped
	CacheMemoryOnly  bool      // disk cache was skipped
	BackgroundDecode bool      // decode ran off the callback context
	FromCache        bool      // served from the target cache
	Size             int       // delivered payload size in bytes
	LastError        string    // last error message if any
	Seq              uint64    // submit order, breaks priority ties
	CreatedAt        time.Time // when the task was submitted
	StartedAt        time.Time // when the fetch started
	FinishedAt       time.Time // when the task finished
}

// Elapsed returns how long the task ran, or zero if it never started
func (t *FetchTask) Elapsed() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	end := t.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(t.StartedAt)
}

// CacheKey returns the key used to store the image: the URL, suffixed with
// "@<scale>x" when the scale is not 1.
func (t *FetchTask) CacheKey() string {
	if t.ScaleFactor == 0 || t.ScaleFactor == 1 {
		return t.URL
	}
	return fmt.Sprintf("%s@%gx", t.URL, t.ScaleFactor)
}

// DisplayName returns the last path segment of the URL, or the URL itself
func (t *FetchTask) DisplayName() string {
	u := t.URL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")
	if u == "" {
		return t.URL
	}
	base := path.Base(u)
	if base == "." || base == "/" || strings.HasSuffix(u, ":/") || strings.Contains(base, ":") {
		return t.URL
	}
	return base
}
