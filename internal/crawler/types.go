package crawler

import (
	"net/http"
	"path/filepath"
	"time"
)

// PageSize is the fixed number of items requested per feed page. The cursor
// advances by this amount after every successful page fetch.
const PageSize = 25

// FeedItem is one entry discovered on a feed page.
type FeedItem struct {
	ID     string
	Author string
	Slug   string
}

// Partition names the output subtree a document is filed under.
type Partition struct {
	Tag    string
	Bucket string
}

// Dir returns the partition path relative to the output root.
func (p Partition) Dir() string {
	return filepath.Join(p.Tag, p.Bucket)
}

// Outcome is the result of materializing a single document.
type Outcome string

// Materialization outcomes.
const (
	OutcomeWritten  Outcome = "written"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeNotFound Outcome = "not_found"
)

// FetchResponse is the raw result of a transport call.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// DocumentRecord describes a document that has just been written to disk.
// It feeds the optional ledger and notification side channels.
type DocumentRecord struct {
	RunID      string    `json:"run_id,omitempty"`
	Identity   string    `json:"identity"`
	URL        string    `json:"url"`
	Tag        string    `json:"tag"`
	Bucket     string    `json:"bucket"`
	Location   string    `json:"location"`
	Assets     int       `json:"assets"`
	AssetsLost int       `json:"assets_lost"`
	WrittenAt  time.Time `json:"written_at"`
}

// TagReport summarizes one tag's crawl.
type TagReport struct {
	Tag string
	// Offsets lists every cursor requested, in order.
	Offsets        []int
	Pages          int
	Seen           int
	BelowThreshold int
	Admitted       int
	Written        int
	Skipped        int
	NotFound       int
	Failed         int
	// Err is the error that stopped the tag. Nil means the feed was exhausted.
	Err error
}

// Cursor returns the last cursor requested for the tag.
func (r TagReport) Cursor() int {
	if len(r.Offsets) == 0 {
		return 0
	}
	return r.Offsets[len(r.Offsets)-1]
}

// SessionReport aggregates the tag reports of one session.
type SessionReport struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Tags     []TagReport
}

// Written returns the number of documents written across all tags.
func (r SessionReport) Written() int {
	total := 0
	for _, t := range r.Tags {
		total += t.Written
	}
	return total
}

// Failed returns the tags that stopped on an error.
func (r SessionReport) Failed() []TagReport {
	var out []TagReport
	for _, t := range r.Tags {
		if t.Err != nil {
			out = append(out, t)
		}
	}
	return out
}
