package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SessionConfig controls the session loop.
type SessionConfig struct {
	// TagCooldown pauses between consecutive tags. Zero disables the pause.
	TagCooldown time.Duration
}

// Session walks an ordered list of tags, one at a time.
type Session struct {
	crawler TagCrawler
	cfg     SessionConfig
	clock   Clock
	ids     IDGenerator
	tracker *Tracker
	logger  *zap.Logger
}

// NewSession wires a Session. clock defaults to SystemClock; tracker may be nil.
func NewSession(
	crawler TagCrawler,
	cfg SessionConfig,
	clock Clock,
	ids IDGenerator,
	tracker *Tracker,
	logger *zap.Logger,
) *Session {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		crawler: crawler,
		cfg:     cfg,
		clock:   clock,
		ids:     ids,
		tracker: tracker,
		logger:  logger,
	}
}

// Run crawls every tag in order. A tag that stops on an error is recorded in
// the report and the next tag is attempted. The returned error is non-nil
// only when ctx is cancelled before all tags have stopped.
func (s *Session) Run(ctx context.Context, tags []string) (SessionReport, error) {
	runID, err := s.newRunID()
	if err != nil {
		return SessionReport{}, err
	}
	ctx = WithRunID(ctx, runID)
	log := s.logger.With(zap.String("run_id", runID))

	report := SessionReport{RunID: runID, Started: s.clock.Now()}
	s.tracker.Start(runID, len(tags), report.Started)
	defer s.tracker.Finish()

	log.Info("session started", zap.Strings("tags", tags))
	for i, tag := range tags {
		if i > 0 {
			if err := s.cooldown(ctx); err != nil {
				report.Finished = s.clock.Now()
				return report, err
			}
		}
		if err := ctx.Err(); err != nil {
			report.Finished = s.clock.Now()
			return report, fmt.Errorf("session interrupted before tag %q: %w", tag, err)
		}

		s.tracker.BeginTag(tag)
		started := s.clock.Now()
		tagReport := s.crawler.CrawlTag(ctx, tag)
		report.Tags = append(report.Tags, tagReport)
		s.tracker.EndTag()

		fields := []zap.Field{
			zap.String("tag", tag),
			zap.Int("pages", tagReport.Pages),
			zap.Int("seen", tagReport.Seen),
			zap.Int("written", tagReport.Written),
			zap.Int("skipped", tagReport.Skipped),
			zap.Int("not_found", tagReport.NotFound),
			zap.Int("failed", tagReport.Failed),
			zap.Duration("elapsed", s.clock.Now().Sub(started)),
		}
		if tagReport.Err != nil {
			log.Warn("tag stopped on error", append(fields, zap.Error(tagReport.Err))...)
		} else {
			log.Info("tag finished", fields...)
		}
	}

	report.Finished = s.clock.Now()
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("session interrupted: %w", err)
	}
	log.Info("session finished",
		zap.Int("tags", len(report.Tags)),
		zap.Int("written", report.Written()),
		zap.Int("failed_tags", len(report.Failed())),
	)
	return report, nil
}

func (s *Session) newRunID() (string, error) {
	if s.ids == nil {
		return "", nil
	}
	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}

func (s *Session) cooldown(ctx context.Context) error {
	if s.cfg.TagCooldown <= 0 {
		return nil
	}
	timer := time.NewTimer(s.cfg.TagCooldown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("session interrupted during cooldown: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
