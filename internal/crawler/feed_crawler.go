package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/tagfeed-harvester/internal/metrics"
)

// FeedCrawlerConfig tunes the admission filter.
type FeedCrawlerConfig struct {
	// MinEngagement is the admission threshold; items below it are skipped.
	MinEngagement int
}

// FeedCrawler walks one tag's feed page by page and materializes every
// admitted item. It keeps no state between CrawlTag calls.
type FeedCrawler struct {
	feed         FeedSource
	materializer Materializer
	cfg          FeedCrawlerConfig
	tracker      *Tracker
	logger       *zap.Logger
}

// NewFeedCrawler wires a FeedCrawler. tracker may be nil.
func NewFeedCrawler(
	feed FeedSource,
	materializer Materializer,
	cfg FeedCrawlerConfig,
	tracker *Tracker,
	logger *zap.Logger,
) *FeedCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedCrawler{
		feed:         feed,
		materializer: materializer,
		cfg:          cfg,
		tracker:      tracker,
		logger:       logger,
	}
}

// CrawlTag requests pages at cursor 0, 25, 50, ... until a page comes back
// empty (exhausted) or a transport failure stops the tag. Errors never escape
// the tag; the reason the crawl stopped is carried in TagReport.Err.
func (c *FeedCrawler) CrawlTag(ctx context.Context, tag string) TagReport {
	report := TagReport{Tag: tag}
	log := c.logger.With(zap.String("tag", tag))

	for cursor := 0; ; cursor += PageSize {
		if err := ctx.Err(); err != nil {
			report.Err = err
			break
		}
		report.Offsets = append(report.Offsets, cursor)
		c.tracker.SetCursor(cursor)

		items, err := c.feed.FetchPage(ctx, tag, cursor, PageSize)
		if err != nil {
			report.Err = fmt.Errorf("fetch page at cursor %d: %w", cursor, err)
			log.Warn("feed page failed, stopping tag",
				zap.Int("cursor", cursor),
				zap.String("kind", string(TransportKindOf(err))),
				zap.Error(err),
			)
			break
		}
		if len(items) == 0 {
			log.Info("feed exhausted", zap.Int("cursor", cursor), zap.Int("pages", report.Pages))
			break
		}
		report.Pages++
		metrics.ObservePage(tag)
		log.Debug("feed page fetched", zap.Int("cursor", cursor), zap.Int("items", len(items)))

		if err := c.processPage(ctx, tag, items, &report, log); err != nil {
			report.Err = err
			log.Warn("item processing failed, stopping tag", zap.Int("cursor", cursor), zap.Error(err))
			break
		}
	}

	if report.Err != nil {
		metrics.ObserveTag("stopped")
	} else {
		metrics.ObserveTag("exhausted")
	}
	return report
}

func (c *FeedCrawler) processPage(
	ctx context.Context,
	tag string,
	items []FeedItem,
	report *TagReport,
	log *zap.Logger,
) error {
	for _, item := range items {
		if err := c.processItem(ctx, tag, item, report, log); err != nil {
			return err
		}
	}
	return nil
}

// processItem returns an error only when the tag must stop.
func (c *FeedCrawler) processItem(
	ctx context.Context,
	tag string,
	item FeedItem,
	report *TagReport,
	log *zap.Logger,
) error {
	report.Seen++
	if item.ID == "" || item.Slug == "" {
		metrics.ObserveItem("invalid")
		log.Debug("feed entry without a post, ignoring", zap.String("item_id", item.ID))
		return nil
	}

	count, err := c.feed.FetchEngagement(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("fetch engagement for %s: %w", item.ID, err)
	}
	if count < c.cfg.MinEngagement {
		report.BelowThreshold++
		metrics.ObserveItem("below_threshold")
		log.Debug("below admission threshold",
			zap.String("item_id", item.ID),
			zap.Int("engagement", count),
			zap.Int("threshold", c.cfg.MinEngagement),
		)
		return nil
	}
	report.Admitted++
	metrics.ObserveItem("admitted")

	partition := Partition{Tag: tag, Bucket: BucketFor(count)}
	url := c.feed.DocumentURL(item)
	outcome, err := c.materializer.Materialize(ctx, url, partition)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("materialize %s: %w", url, errors.Join(ctxErr, err))
		}
		report.Failed++
		c.tracker.Fail()
		log.Error("materialize failed", zap.String("url", url), zap.Error(err))
		return nil
	}

	switch outcome {
	case OutcomeWritten:
		report.Written++
	case OutcomeSkipped:
		report.Skipped++
	case OutcomeNotFound:
		report.NotFound++
	}
	c.tracker.Observe(outcome)
	log.Debug("item processed",
		zap.String("url", url),
		zap.String("bucket", partition.Bucket),
		zap.String("outcome", string(outcome)),
	)
	return nil
}
