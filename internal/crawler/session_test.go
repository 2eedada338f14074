package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCrawler struct {
	mu      sync.Mutex
	reports map[string]TagReport
	order   []string
	runIDs  []string
	onCrawl func(tag string)
}

func (s *scriptedCrawler) CrawlTag(ctx context.Context, tag string) TagReport {
	s.mu.Lock()
	s.order = append(s.order, tag)
	s.runIDs = append(s.runIDs, RunIDFrom(ctx))
	s.mu.Unlock()
	if s.onCrawl != nil {
		s.onCrawl(tag)
	}
	if r, ok := s.reports[tag]; ok {
		r.Tag = tag
		return r
	}
	return TagReport{Tag: tag}
}

type fixedIDs struct {
	id  string
	err error
}

func (f fixedIDs) NewID() (string, error) { return f.id, f.err }

func TestSessionRunContinuesAfterFailedTag(t *testing.T) {
	t.Parallel()

	tc := &scriptedCrawler{reports: map[string]TagReport{
		"a": {Written: 2},
		"b": {Err: &TransportError{Kind: KindEnvelope}},
		"c": {Written: 1},
	}}
	tracker := NewTracker()
	session := NewSession(tc, SessionConfig{}, nil, fixedIDs{id: "run-42"}, tracker, nil)

	report, err := session.Run(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tc.order)
	assert.Equal(t, []string{"run-42", "run-42", "run-42"}, tc.runIDs)
	assert.Equal(t, "run-42", report.RunID)
	require.Len(t, report.Tags, 3)
	assert.Equal(t, 3, report.Written())
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].Tag)
	assert.False(t, report.Finished.Before(report.Started))

	snap := tracker.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, 3, snap.TagsDone)
	assert.Equal(t, 3, snap.TagsTotal)
}

func TestSessionRunCooldownInterruptedByCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	tc := &scriptedCrawler{onCrawl: func(string) { cancel() }}
	session := NewSession(tc, SessionConfig{TagCooldown: time.Hour}, nil, nil, nil, nil)

	start := time.Now()
	report, err := session.Run(ctx, []string{"a", "b"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []string{"a"}, tc.order)
	assert.Len(t, report.Tags, 1)
}

func TestSessionRunAppliesCooldown(t *testing.T) {
	t.Parallel()

	tc := &scriptedCrawler{}
	session := NewSession(tc, SessionConfig{TagCooldown: 30 * time.Millisecond}, nil, nil, nil, nil)

	start := time.Now()
	_, err := session.Run(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestSessionRunIDFailure(t *testing.T) {
	t.Parallel()

	tc := &scriptedCrawler{}
	session := NewSession(tc, SessionConfig{}, nil, fixedIDs{err: errors.New("no entropy")}, nil, nil)
	_, err := session.Run(context.Background(), []string{"a"})
	require.ErrorContains(t, err, "generate run id")
	assert.Empty(t, tc.order)
}

func TestSessionRunEmpty(t *testing.T) {
	t.Parallel()

	report, err := NewSession(&scriptedCrawler{}, SessionConfig{}, nil, nil, nil, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Tags)
	assert.Zero(t, report.Written())
}
