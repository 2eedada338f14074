package crawler

import (
	"context"
	"io"
	"time"
)

// FeedSource answers the feed and engagement query contracts.
type FeedSource interface {
	FetchPage(ctx context.Context, tag string, offset, limit int) ([]FeedItem, error)
	FetchEngagement(ctx context.Context, itemID string) (int, error)
	DocumentURL(item FeedItem) string
}

// Materializer turns a document URL into an on-disk document.
type Materializer interface {
	Materialize(ctx context.Context, url string, partition Partition) (Outcome, error)
}

// TagCrawler crawls a single tag until it stops.
type TagCrawler interface {
	CrawlTag(ctx context.Context, tag string) TagReport
}

// Fetcher issues GET requests through the validated transport.
type Fetcher interface {
	Get(ctx context.Context, url string) (FetchResponse, error)
}

// Poster issues JSON POST requests through the validated transport.
type Poster interface {
	Post(ctx context.Context, endpoint string, payload any) (FetchResponse, error)
}

// IdentityIndex is the append-only set of already-materialized documents.
type IdentityIndex interface {
	Contains(identity string) bool
	Record(identity string)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher computes digests used for content-derived file names.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Ledger keeps an external record of written documents.
type Ledger interface {
	RecordDocument(ctx context.Context, record DocumentRecord) error
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reports wall time in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// IDGenerator produces run IDs and nonces.
type IDGenerator interface {
	NewID() (string, error)
}
