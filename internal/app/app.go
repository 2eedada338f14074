// Package app initializes and holds the harvester's long-lived services,
// acting as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/tagfeed-harvester/internal/api"
	"github.com/JakeFAU/tagfeed-harvester/internal/assets"
	"github.com/JakeFAU/tagfeed-harvester/internal/config"
	"github.com/JakeFAU/tagfeed-harvester/internal/crawler"
	"github.com/JakeFAU/tagfeed-harvester/internal/document"
	"github.com/JakeFAU/tagfeed-harvester/internal/feedapi"
	"github.com/JakeFAU/tagfeed-harvester/internal/hash/sha256"
	"github.com/JakeFAU/tagfeed-harvester/internal/id/uuid"
	"github.com/JakeFAU/tagfeed-harvester/internal/index"
	"github.com/JakeFAU/tagfeed-harvester/internal/metrics"
	"github.com/JakeFAU/tagfeed-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/tagfeed-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/tagfeed-harvester/internal/storage/local"
	"github.com/JakeFAU/tagfeed-harvester/internal/storage/postgres"
	"github.com/JakeFAU/tagfeed-harvester/internal/transport"
)

// ErrNoTags is returned by ResolveTags when nothing was selected.
var ErrNoTags = errors.New("no tags selected: pass --tag or --all")

// App holds the shared services built once per command invocation.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	tracker   *crawler.Tracker
	feed      *feedapi.Client
	index     *index.Index
	session   *crawler.Session
	ledger    *postgres.Ledger
	publisher *pubsub.Publisher
}

// NewApp builds every service from cfg. The ledger and the publisher are only
// connected when configured; any failure releases what was already opened.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	logger.Info("initializing harvester services", zap.String("root", cfg.Output.Root))

	store, err := local.New(local.Config{BaseDir: cfg.Output.Root})
	if err != nil {
		return nil, fmt.Errorf("init output store: %w", err)
	}
	idx, err := index.Build(store.BaseDir(), logger)
	if err != nil {
		return nil, fmt.Errorf("build identity index: %w", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
	})
	retry := transport.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.HTTP.MaxAttempts
	client := transport.New(transport.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Headers:      transport.DefaultHeaders(cfg.HTTP.Cookie),
		Timeout:      cfg.HTTP.Timeout,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		Retry:        retry,
	}, limiter, logger)

	feed := feedapi.New(feedapi.Config{
		GraphQLURL: cfg.API.GraphQLURL,
		BaseURL:    cfg.API.BaseURL,
	}, client, logger)

	ids := uuid.NewUUIDGenerator()
	materializer := document.New(
		document.Config{},
		client,
		store,
		idx,
		assets.NewExtractor(ids),
		sha256.New(),
		crawler.SystemClock,
		logger,
	)

	a := &App{
		cfg:     cfg,
		logger:  logger,
		tracker: crawler.NewTracker(),
		feed:    feed,
		index:   idx,
	}

	if cfg.LedgerEnabled() {
		ledger, err := postgres.NewLedger(ctx, postgres.LedgerConfig{
			DSN:   cfg.Ledger.DSN,
			Table: cfg.Ledger.Table,
		})
		if err != nil {
			return nil, fmt.Errorf("init ledger: %w", err)
		}
		a.ledger = ledger
		materializer.SetLedger(ledger)
		logger.Info("harvest ledger enabled", zap.String("table", cfg.Ledger.Table))
	}

	if cfg.PublisherEnabled() {
		pub, err := pubsub.New(ctx, pubsub.Config{
			ProjectID: cfg.Publisher.ProjectID,
			TopicID:   cfg.Publisher.Topic,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		a.publisher = pub
		materializer.SetPublisher(pub)
		logger.Info("notifications enabled", zap.String("topic", cfg.Publisher.Topic))
	}

	feedCrawler := crawler.NewFeedCrawler(
		feed,
		materializer,
		crawler.FeedCrawlerConfig{MinEngagement: cfg.Crawl.MinEngagement},
		a.tracker,
		logger,
	)
	a.session = crawler.NewSession(
		feedCrawler,
		crawler.SessionConfig{TagCooldown: cfg.Crawl.TagCooldown},
		crawler.SystemClock,
		ids,
		a.tracker,
		logger,
	)

	logger.Info("harvester services initialized", zap.Int("indexed", idx.Len()))
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Tracker exposes live session progress.
func (a *App) Tracker() *crawler.Tracker {
	return a.tracker
}

// IndexSize reports how many documents are already materialized.
func (a *App) IndexSize() int {
	return a.index.Len()
}

// FollowedTags lists the tags followed by the session's viewer.
func (a *App) FollowedTags(ctx context.Context) ([]string, error) {
	tags, err := a.feed.FollowedTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list followed tags: %w", err)
	}
	return tags, nil
}

// ResolveTags merges explicit tags with the followed tags when all is set.
// Explicit tags keep their order and come first; duplicates are dropped.
func (a *App) ResolveTags(ctx context.Context, explicit []string, all bool) ([]string, error) {
	tags := append([]string(nil), explicit...)
	if all {
		followed, err := a.FollowedTags(ctx)
		if err != nil {
			return nil, err
		}
		tags = append(tags, followed...)
	}
	seen := make(map[string]struct{}, len(tags))
	out := tags[:0]
	for _, tag := range tags {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil, ErrNoTags
	}
	return out, nil
}

// Run crawls tags in order. When metrics.addr is set the status server runs
// for the lifetime of the session.
func (a *App) Run(ctx context.Context, tags []string) (crawler.SessionReport, error) {
	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := api.NewServer(a.tracker, a.readinessChecks(), a.logger)
		serveCtx, stop := context.WithCancel(ctx)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Serve(serveCtx, addr)
		}()
		defer func() {
			stop()
			if err := <-errCh; err != nil {
				a.logger.Warn("status server stopped with error", zap.Error(err))
			}
		}()
	}
	return a.session.Run(ctx, tags)
}

func (a *App) readinessChecks() map[string]api.Check {
	root := a.cfg.Output.Root
	checks := map[string]api.Check{
		"output_root": func(context.Context) error {
			if !index.Exists(root) {
				return fmt.Errorf("output root %s is not a directory", root)
			}
			return nil
		},
	}
	if a.ledger != nil {
		checks["ledger"] = a.ledger.Ping
	}
	return checks
}

// Close gracefully shuts down the services opened by NewApp.
func (a *App) Close() {
	a.logger.Info("shutting down harvester services")
	if a.ledger != nil {
		a.ledger.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("error closing publisher", zap.Error(err))
		}
	}
	// Sync fails on stdout/stderr on some platforms; nothing to do about it.
	_ = a.logger.Sync()
}
