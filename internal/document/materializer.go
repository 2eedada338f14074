// Package document materializes one remote document: it fetches the page,
// pulls out its content region and media, converts the region to markdown and
// files the result under the output tree.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/tagfeed-harvester/internal/assets"
	"github.com/JakeFAU/tagfeed-harvester/internal/crawler"
	"github.com/JakeFAU/tagfeed-harvester/internal/index"
	"github.com/JakeFAU/tagfeed-harvester/internal/metrics"
)

// Defaults applied by New.
const (
	DefaultContentSelector = "article"
	DefaultEvent           = "document.written"
	imagesDir              = "images"
)

// Config tunes the materializer.
type Config struct {
	// ContentSelector picks the content region; the first match wins.
	ContentSelector string
	// Event names the notification published after a write.
	Event string
}

// Extractor swaps media figures for placeholders.
type Extractor interface {
	Extract(region *goquery.Selection) ([]assets.Ref, error)
}

// Materializer implements crawler.Materializer.
type Materializer struct {
	cfg       Config
	fetcher   crawler.Fetcher
	store     crawler.BlobStore
	index     crawler.IdentityIndex
	extractor Extractor
	hasher    crawler.Hasher
	clock     crawler.Clock
	ledger    crawler.Ledger
	publisher crawler.Publisher
	converter *converter.Converter
	logger    *zap.Logger
}

var _ crawler.Materializer = (*Materializer)(nil)

// New wires a Materializer. clock and logger may be nil.
func New(
	cfg Config,
	fetcher crawler.Fetcher,
	store crawler.BlobStore,
	idx crawler.IdentityIndex,
	extractor Extractor,
	hasher crawler.Hasher,
	clock crawler.Clock,
	logger *zap.Logger,
) *Materializer {
	if cfg.ContentSelector == "" {
		cfg.ContentSelector = DefaultContentSelector
	}
	if cfg.Event == "" {
		cfg.Event = DefaultEvent
	}
	if clock == nil {
		clock = crawler.SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		cfg:       cfg,
		fetcher:   fetcher,
		store:     store,
		index:     idx,
		extractor: extractor,
		hasher:    hasher,
		clock:     clock,
		logger:    logger,
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// SetLedger attaches the optional harvest ledger.
func (m *Materializer) SetLedger(l crawler.Ledger) {
	m.ledger = l
}

// SetPublisher attaches the optional notification publisher.
func (m *Materializer) SetPublisher(p crawler.Publisher) {
	m.publisher = p
}

// Materialize fetches url and writes it beneath partition. Documents already
// in the index are skipped without any network traffic. Unreachable documents
// and documents without a content region are reported as OutcomeNotFound.
// The returned error is reserved for local failures: a failed write, or a
// cancelled context.
func (m *Materializer) Materialize(ctx context.Context, url string, partition crawler.Partition) (crawler.Outcome, error) {
	log := m.logger.With(
		zap.String("url", url),
		zap.String("tag", partition.Tag),
		zap.String("bucket", partition.Bucket),
	)
	if runID := crawler.RunIDFrom(ctx); runID != "" {
		log = log.With(zap.String("run_id", runID))
	}

	slug, err := SlugFromURL(url)
	if err != nil {
		log.Warn("cannot derive identity", zap.Error(err))
		return m.done(crawler.OutcomeNotFound), nil
	}
	log = log.With(zap.String("identity", slug))

	if m.index.Contains(slug) {
		log.Debug("already materialized")
		return m.done(crawler.OutcomeSkipped), nil
	}

	resp, err := m.fetcher.Get(ctx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("fetch %s: %w", url, ctxErr)
		}
		log.Warn("document unavailable", zap.String("kind", string(crawler.TransportKindOf(err))), zap.Error(err))
		return m.done(crawler.OutcomeNotFound), nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		log.Warn("document unparseable", zap.Error(err))
		return m.done(crawler.OutcomeNotFound), nil
	}
	region := doc.Find(m.cfg.ContentSelector).First()
	if region.Length() == 0 {
		log.Warn("document has no content region", zap.Error(crawler.ErrStructural))
		return m.done(crawler.OutcomeNotFound), nil
	}

	refs, err := m.extractor.Extract(region)
	if err != nil {
		return "", fmt.Errorf("extract assets from %s: %w", url, err)
	}
	fragment, err := goquery.OuterHtml(region)
	if err != nil {
		return "", fmt.Errorf("render content region of %s: %w", url, err)
	}
	markdown, err := m.converter.ConvertString(fragment, converter.WithDomain(url))
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", url, err)
	}

	docDir := path.Join(partition.Tag, partition.Bucket, slug)
	lost := 0
	for _, ref := range refs {
		link, err := m.saveAsset(ctx, ref.SourceURL, docDir)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", fmt.Errorf("fetch assets of %s: %w", url, ctxErr)
			}
			lost++
			metrics.ObserveAsset("failed")
			log.Warn("asset dropped", zap.String("asset", ref.SourceURL), zap.Error(err))
		} else {
			metrics.ObserveAsset("saved")
		}
		markdown = strings.ReplaceAll(markdown, ref.Placeholder, link)
	}
	markdown = Tidy(markdown)

	location, err := m.store.PutObject(ctx, path.Join(docDir, slug+index.DocumentExt), "text/markdown", strings.NewReader(markdown))
	if err != nil {
		return "", fmt.Errorf("write document %s: %w", slug, err)
	}
	m.index.Record(slug)
	log.Info("document written", zap.String("location", location), zap.Int("assets", len(refs)), zap.Int("assets_lost", lost))

	m.notify(ctx, log, crawler.DocumentRecord{
		RunID:      crawler.RunIDFrom(ctx),
		Identity:   index.Normalize(slug),
		URL:        url,
		Tag:        partition.Tag,
		Bucket:     partition.Bucket,
		Location:   location,
		Assets:     len(refs),
		AssetsLost: lost,
		WrittenAt:  m.clock.Now(),
	})
	return m.done(crawler.OutcomeWritten), nil
}

// saveAsset stores one media file next to the document and returns the
// markdown link to it. On failure the link is empty.
func (m *Materializer) saveAsset(ctx context.Context, sourceURL, docDir string) (string, error) {
	resp, err := m.fetcher.Get(ctx, sourceURL)
	if err != nil {
		return "", errors.Join(crawler.ErrAsset, err)
	}
	name, err := m.hasher.Hash([]byte(sourceURL))
	if err != nil {
		return "", fmt.Errorf("name asset: %w", err)
	}
	file := name + "." + ImageExtension(resp.Headers.Get("Content-Type"), sourceURL)
	contentType := resp.Headers.Get("Content-Type")
	if _, err := m.store.PutObject(ctx, path.Join(docDir, imagesDir, file), contentType, bytes.NewReader(resp.Body)); err != nil {
		return "", errors.Join(crawler.ErrAsset, err)
	}
	return "![](" + imagesDir + "/" + file + ")", nil
}

func (m *Materializer) notify(ctx context.Context, log *zap.Logger, record crawler.DocumentRecord) {
	if m.ledger != nil {
		if err := m.ledger.RecordDocument(ctx, record); err != nil {
			log.Warn("ledger write failed", zap.Error(err))
		}
	}
	if m.publisher != nil {
		if _, err := m.publisher.Publish(ctx, m.cfg.Event, record); err != nil {
			log.Warn("notification failed", zap.Error(err))
		}
	}
}

func (m *Materializer) done(outcome crawler.Outcome) crawler.Outcome {
	metrics.ObserveDocument(string(outcome))
	return outcome
}
