// Package transport issues the harvester's HTTP requests through a colly
// collector and gates every response before callers see it.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/tagfeed-harvester/internal/crawler"
	"github.com/JakeFAU/tagfeed-harvester/internal/metrics"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 20 << 20
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Headers      http.Header
	Timeout      time.Duration
	MaxBodyBytes int
	Retry        RetryPolicy
}

// Waiter paces outgoing requests per host.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Client implements crawler.Fetcher and crawler.Poster.
type Client struct {
	cfg           Config
	limiter       Waiter
	logger        *zap.Logger
	baseCollector *colly.Collector
}

var (
	_ crawler.Fetcher = (*Client)(nil)
	_ crawler.Poster  = (*Client)(nil)
)

// New builds a Client. limiter may be nil; an empty UserAgent falls back to
// DefaultUserAgent.
func New(cfg Config, limiter Waiter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	c := colly.NewCollector(
		colly.Async(false),
		// The GraphQL endpoint is posted to over and over.
		colly.AllowURLRevisit(),
		// Non-2xx responses reach OnResponse so the gate can classify them.
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
		colly.MaxBodySize(cfg.MaxBodyBytes),
	)
	c.UserAgent = cfg.UserAgent
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Client{
		cfg:           cfg,
		limiter:       limiter,
		logger:        logger,
		baseCollector: c,
	}
}

// Get fetches url and returns the gated response.
func (c *Client) Get(ctx context.Context, url string) (crawler.FetchResponse, error) {
	return c.do(ctx, http.MethodGet, url, nil, nil)
}

// Post sends payload as a JSON body to endpoint and returns the gated response.
func (c *Client) Post(ctx context.Context, endpoint string, payload any) (crawler.FetchResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("marshal payload: %w", err)
	}
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Accept", "application/json")
	return c.do(ctx, http.MethodPost, endpoint, body, hdr)
}

func (c *Client) do(
	ctx context.Context,
	method, url string,
	body []byte,
	extra http.Header,
) (crawler.FetchResponse, error) {
	for attempt := 1; ; attempt++ {
		resp, err := c.attempt(ctx, method, url, body, extra)
		if !c.cfg.Retry.ShouldRetry(err, attempt) {
			return resp, err
		}
		wait := c.cfg.Retry.Backoff(attempt)
		c.logger.Info("retrying request",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := sleep(ctx, wait); err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("%s %s canceled: %w", method, url, err)
		}
	}
}

func (c *Client) attempt(
	ctx context.Context,
	method, url string,
	body []byte,
	extra http.Header,
) (crawler.FetchResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, url); err != nil {
			return crawler.FetchResponse{}, err
		}
	}

	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := c.baseCollector.Clone()
	collector.OnResponse(func(r *colly.Response) {
		result = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	hdr := c.headers(extra)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	done := make(chan error, 1)
	go func() {
		done <- collector.Request(method, url, reader, nil, hdr)
	}()

	select {
	case <-ctx.Done():
		return crawler.FetchResponse{}, fmt.Errorf("%s %s canceled: %w", method, url, ctx.Err())
	case err := <-done:
		if err == nil {
			err = fetchErr
		}
		if err != nil {
			metrics.ObserveHTTPRequest(method, url, 0, time.Since(start))
			c.logger.Debug("request failed", zap.String("method", method), zap.String("url", url), zap.Error(err))
			return crawler.FetchResponse{}, &crawler.TransportError{Kind: crawler.KindNetwork, URL: url, Err: err}
		}
	}

	metrics.ObserveHTTPRequest(method, url, result.StatusCode, result.Duration)
	if err := Check(result); err != nil {
		c.logger.Debug("response rejected",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", result.StatusCode),
			zap.Error(err),
		)
		return result, err
	}
	return result, nil
}

func (c *Client) headers(extra http.Header) http.Header {
	hdr := make(http.Header, len(c.cfg.Headers)+len(extra))
	for key, values := range c.cfg.Headers {
		hdr[key] = append([]string(nil), values...)
	}
	for key, values := range extra {
		hdr[key] = append([]string(nil), values...)
	}
	return hdr
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
