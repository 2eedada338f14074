package crawler

import (
	"sync"
	"time"
)

// Progress is a point-in-time view of a running session.
type Progress struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	TagsTotal  int       `json:"tags_total"`
	TagsDone   int       `json:"tags_done"`
	CurrentTag string    `json:"current_tag,omitempty"`
	Cursor     int       `json:"cursor"`
	Written    int       `json:"written"`
	Skipped    int       `json:"skipped"`
	NotFound   int       `json:"not_found"`
	Failed     int       `json:"failed"`
	Running    bool      `json:"running"`
}

// Tracker holds live session progress. The harvest loop is the only writer;
// the status endpoint reads snapshots from another goroutine.
// All methods are safe on a nil receiver.
type Tracker struct {
	mu sync.RWMutex
	p  Progress
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Start resets the tracker for a new run.
func (t *Tracker) Start(runID string, tags int, at time.Time) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p = Progress{RunID: runID, StartedAt: at, TagsTotal: tags, Running: true}
}

// BeginTag marks tag as the one being crawled.
func (t *Tracker) BeginTag(tag string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.CurrentTag = tag
	t.p.Cursor = 0
}

// SetCursor records the cursor of the page being fetched.
func (t *Tracker) SetCursor(cursor int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Cursor = cursor
}

// Observe counts one materialization outcome.
func (t *Tracker) Observe(outcome Outcome) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	switch outcome {
	case OutcomeWritten:
		t.p.Written++
	case OutcomeSkipped:
		t.p.Skipped++
	case OutcomeNotFound:
		t.p.NotFound++
	}
}

// Fail counts one item that errored locally.
func (t *Tracker) Fail() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Failed++
}

// EndTag marks the current tag as stopped.
func (t *Tracker) EndTag() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.TagsDone++
	t.p.CurrentTag = ""
}

// Finish marks the run as no longer running.
func (t *Tracker) Finish() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Running = false
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() Progress {
	if t == nil {
		return Progress{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p
}
