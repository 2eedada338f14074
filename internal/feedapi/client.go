// Package feedapi speaks the upstream GraphQL contracts: tag feed pages,
// engagement counts and the viewer's followed tags. Every request is sent as
// a one-element batch and every answer is read from element zero.
package feedapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/tagfeed-harvester/internal/crawler"
)

// RecommendedTag selects the personalised recommendation feed instead of a
// tag feed.
const RecommendedTag = "recommended"

// Defaults for the upstream endpoints.
const (
	DefaultGraphQLURL = "https://medium.com/_/graphql"
	DefaultBaseURL    = "https://medium.com"
)

// Config locates the upstream service.
type Config struct {
	GraphQLURL string
	BaseURL    string
}

// Client implements crawler.FeedSource over a crawler.Poster.
type Client struct {
	cfg    Config
	poster crawler.Poster
	logger *zap.Logger
}

var _ crawler.FeedSource = (*Client)(nil)

// New builds a Client. Empty Config fields fall back to the defaults.
func New(cfg Config, poster crawler.Poster, logger *zap.Logger) *Client {
	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = DefaultGraphQLURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, poster: poster, logger: logger}
}

type operation struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

type paging struct {
	From  string `json:"from"`
	Limit int    `json:"limit"`
}

type feedPost struct {
	ID      string `json:"id"`
	Creator *struct {
		Username string `json:"username"`
	} `json:"creator"`
	UniqueSlug string `json:"uniqueSlug"`
}

type feedPayload struct {
	Items []struct {
		Post *feedPost `json:"post"`
	} `json:"items"`
}

type feedData struct {
	TagFeed         *feedPayload `json:"personalisedTagFeed"`
	RecommendedFeed *feedPayload `json:"webRecommendedFeed"`
}

// FetchPage requests one page of the tag feed starting at offset. Entries
// that carry no post come back as zero FeedItems so the caller can count
// them as seen and skip them.
func (c *Client) FetchPage(ctx context.Context, tag string, offset, limit int) ([]crawler.FeedItem, error) {
	page := paging{From: strconv.Itoa(offset), Limit: limit}
	op := operation{
		OperationName: tagFeedOperation,
		Variables:     map[string]any{"tagSlug": tag, "paging": page, "skipCache": true},
		Query:         tagFeedQuery,
	}
	if tag == RecommendedTag {
		op = operation{
			OperationName: recommendedFeedOperation,
			Variables:     map[string]any{"forceRank": true, "paging": page, "skipCache": true},
			Query:         recommendedFeedQuery,
		}
	}

	var data feedData
	if err := c.call(ctx, op, &data); err != nil {
		return nil, err
	}
	feed := data.TagFeed
	if tag == RecommendedTag {
		feed = data.RecommendedFeed
	}
	if feed == nil {
		return nil, c.decodeError(fmt.Errorf("feed payload missing"))
	}

	items := make([]crawler.FeedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		var item crawler.FeedItem
		if p := entry.Post; p != nil {
			item.ID = p.ID
			item.Slug = strings.TrimSpace(p.UniqueSlug)
			if p.Creator != nil {
				item.Author = p.Creator.Username
			}
		}
		items = append(items, item)
	}
	c.logger.Debug("feed page fetched",
		zap.String("tag", tag),
		zap.Int("cursor", offset),
		zap.Int("items", len(items)),
	)
	return items, nil
}

// FetchEngagement returns the clap count for itemID. A missing count is 0.
func (c *Client) FetchEngagement(ctx context.Context, itemID string) (int, error) {
	op := operation{
		OperationName: engagementOperation,
		Variables:     map[string]any{"postId": itemID},
		Query:         engagementQuery,
	}
	var data struct {
		PostResult *struct {
			ClapCount *int `json:"clapCount"`
		} `json:"postResult"`
	}
	if err := c.call(ctx, op, &data); err != nil {
		return 0, err
	}
	if data.PostResult == nil || data.PostResult.ClapCount == nil {
		return 0, nil
	}
	return *data.PostResult.ClapCount, nil
}

// FollowedTags returns the ids of the tags the session's viewer follows,
// sorted and de-duplicated.
func (c *Client) FollowedTags(ctx context.Context) ([]string, error) {
	op := operation{
		OperationName: followedTagsOperation,
		Variables:     map[string]any{"paging": map[string]int{"limit": 1000}},
		Query:         followedTagsQuery,
	}
	var data struct {
		Viewer *struct {
			FollowedTags *struct {
				Tags []struct {
					ID string `json:"id"`
				} `json:"tags"`
			} `json:"followedTags"`
		} `json:"viewer"`
	}
	if err := c.call(ctx, op, &data); err != nil {
		return nil, err
	}
	if data.Viewer == nil {
		return nil, c.decodeError(fmt.Errorf("viewer missing; is the session cookie valid?"))
	}
	if data.Viewer.FollowedTags == nil {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(data.Viewer.FollowedTags.Tags))
	tags := make([]string, 0, len(data.Viewer.FollowedTags.Tags))
	for _, t := range data.Viewer.FollowedTags.Tags {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		tags = append(tags, id)
	}
	sort.Strings(tags)
	return tags, nil
}

// DocumentURL builds the canonical document location for item.
func (c *Client) DocumentURL(item crawler.FeedItem) string {
	return fmt.Sprintf("%s/@%s/%s", c.cfg.BaseURL, url.PathEscape(item.Author), url.PathEscape(item.Slug))
}

func (c *Client) call(ctx context.Context, op operation, out any) error {
	resp, err := c.poster.Post(ctx, c.cfg.GraphQLURL, []operation{op})
	if err != nil {
		return fmt.Errorf("%s: %w", op.OperationName, err)
	}
	var batch []struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &batch); err != nil {
		return fmt.Errorf("%s: %w", op.OperationName, c.decodeError(err))
	}
	if len(batch) == 0 || len(batch[0].Data) == 0 || string(batch[0].Data) == "null" {
		return fmt.Errorf("%s: %w", op.OperationName, c.decodeError(fmt.Errorf("empty batch response")))
	}
	if err := json.Unmarshal(batch[0].Data, out); err != nil {
		return fmt.Errorf("%s: %w", op.OperationName, c.decodeError(err))
	}
	return nil
}

func (c *Client) decodeError(err error) error {
	return &crawler.TransportError{Kind: crawler.KindDecode, URL: c.cfg.GraphQLURL, Err: err}
}
