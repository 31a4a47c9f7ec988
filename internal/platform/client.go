// Package platform wraps the YouTube Data API v3. The client is stateless
// with respect to credentials: every call takes the API key to run under,
// so the orchestrator stays free to rotate keys between calls.
package platform

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Quota unit costs per the YouTube Data API pricing table.
const (
	SearchCost int64 = 100
	ListCost   int64 = 1
)

// channelVideoWindow bounds "recent" uploads when sampling a channel.
const channelVideoWindow = 365 * 24 * time.Hour

// SearchItem is one summary row from a text search.
type SearchItem struct {
	VideoID      string
	ChannelID    string
	Title        string
	Description  string
	ChannelTitle string
	PublishedAt  time.Time
	ThumbnailURL string
}

// ChannelDetail is the batch-fetched public profile of a channel. Missing
// upstream fields default to zero values.
type ChannelDetail struct {
	ID                string
	Title             string
	Description       string
	Country           string
	ThumbnailURL      string
	Subscribers       uint64
	HiddenSubscribers bool
	TotalViews        uint64
	Videos            uint64
}

// VideoDetail is the batch-fetched statistics of a video.
type VideoDetail struct {
	ID           string
	ChannelID    string
	Title        string
	Description  string
	Duration     string
	ThumbnailURL string
	PublishedAt  time.Time
	Views        uint64
	Likes        uint64
	Comments     uint64
}

// Client issues YouTube Data API calls under caller-supplied API keys.
type Client struct {
	mu       sync.Mutex
	services map[string]*youtube.Service

	timeout time.Duration
	limiter *rate.Limiter
}

// NewClient creates a client with the given per-call timeout. A small
// client-side rate limiter keeps burst fan-out from tripping upstream
// rate limits.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		services: make(map[string]*youtube.Service),
		timeout:  timeout,
		limiter:  rate.NewLimiter(rate.Limit(8), 8),
	}
}

// SearchChannels runs a text search returning channel summaries.
func (c *Client) SearchChannels(ctx context.Context, apiKey, query, region string, limit int64) ([]SearchItem, error) {
	return c.search(ctx, apiKey, func(svc *youtube.Service) *youtube.SearchListCall {
		return svc.Search.List([]string{"snippet"}).
			Q(query).
			Type("channel").
			RegionCode(region).
			MaxResults(limit)
	})
}

// SearchVideos runs a text search returning video summaries.
func (c *Client) SearchVideos(ctx context.Context, apiKey, query, region string, limit int64) ([]SearchItem, error) {
	return c.search(ctx, apiKey, func(svc *youtube.Service) *youtube.SearchListCall {
		return svc.Search.List([]string{"snippet"}).
			Q(query).
			Type("video").
			RegionCode(region).
			MaxResults(limit)
	})
}

// SearchChannelVideos samples a channel's recent uploads matching the
// query, most viewed first.
func (c *Client) SearchChannelVideos(ctx context.Context, apiKey, channelID, query string, limit int64) ([]SearchItem, error) {
	after := time.Now().Add(-channelVideoWindow).UTC().Format(time.RFC3339)
	return c.search(ctx, apiKey, func(svc *youtube.Service) *youtube.SearchListCall {
		return svc.Search.List([]string{"snippet"}).
			Q(query).
			Type("video").
			ChannelId(channelID).
			Order("viewCount").
			PublishedAfter(after).
			MaxResults(limit)
	})
}

// ChannelDetails batch-fetches channel statistics for up to 50 ids.
func (c *Client) ChannelDetails(ctx context.Context, apiKey string, ids []string) ([]ChannelDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	svc, err := c.service(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	resp, err := doWithRetry(c, ctx, func(callCtx context.Context) (*youtube.ChannelListResponse, error) {
		return svc.Channels.List([]string{"snippet", "statistics"}).
			Id(strings.Join(ids, ",")).
			MaxResults(int64(len(ids))).
			Context(callCtx).
			Do()
	})
	if err != nil {
		return nil, Classify(err)
	}

	out := make([]ChannelDetail, 0, len(resp.Items))
	for _, ch := range resp.Items {
		d := ChannelDetail{ID: ch.Id}
		if ch.Snippet != nil {
			d.Title = ch.Snippet.Title
			d.Description = ch.Snippet.Description
			d.Country = ch.Snippet.Country
			d.ThumbnailURL = thumbnailURL(ch.Snippet.Thumbnails)
		}
		if ch.Statistics != nil {
			d.Subscribers = ch.Statistics.SubscriberCount
			d.HiddenSubscribers = ch.Statistics.HiddenSubscriberCount
			d.TotalViews = ch.Statistics.ViewCount
			d.Videos = ch.Statistics.VideoCount
		}
		out = append(out, d)
	}
	return out, nil
}

// VideoDetails batch-fetches video statistics for up to 50 ids.
func (c *Client) VideoDetails(ctx context.Context, apiKey string, ids []string) ([]VideoDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	svc, err := c.service(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	resp, err := doWithRetry(c, ctx, func(callCtx context.Context) (*youtube.VideoListResponse, error) {
		return svc.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
			Id(strings.Join(ids, ",")).
			MaxResults(int64(len(ids))).
			Context(callCtx).
			Do()
	})
	if err != nil {
		return nil, Classify(err)
	}

	out := make([]VideoDetail, 0, len(resp.Items))
	for _, v := range resp.Items {
		d := VideoDetail{ID: v.Id}
		if v.Snippet != nil {
			d.ChannelID = v.Snippet.ChannelId
			d.Title = v.Snippet.Title
			d.Description = v.Snippet.Description
			d.ThumbnailURL = thumbnailURL(v.Snippet.Thumbnails)
			if t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
				d.PublishedAt = t
			}
		}
		if v.ContentDetails != nil {
			d.Duration = v.ContentDetails.Duration
		}
		if v.Statistics != nil {
			d.Views = v.Statistics.ViewCount
			d.Likes = v.Statistics.LikeCount
			d.Comments = v.Statistics.CommentCount
		}
		out = append(out, d)
	}
	return out, nil
}

func (c *Client) search(ctx context.Context, apiKey string, build func(*youtube.Service) *youtube.SearchListCall) ([]SearchItem, error) {
	svc, err := c.service(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	resp, err := doWithRetry(c, ctx, func(callCtx context.Context) (*youtube.SearchListResponse, error) {
		return build(svc).Context(callCtx).Do()
	})
	if err != nil {
		return nil, Classify(err)
	}

	out := make([]SearchItem, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Snippet == nil {
			// Malformed rows are dropped, not fatal.
			continue
		}
		si := SearchItem{
			VideoID:      item.Id.VideoId,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelTitle: item.Snippet.ChannelTitle,
			ThumbnailURL: thumbnailURL(item.Snippet.Thumbnails),
		}
		// Channel hits carry the id in Id.ChannelId; video hits carry
		// the owning channel in Snippet.ChannelId.
		if item.Id.ChannelId != "" {
			si.ChannelID = item.Id.ChannelId
		} else {
			si.ChannelID = item.Snippet.ChannelId
		}
		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			si.PublishedAt = t
		}
		if si.VideoID == "" && si.ChannelID == "" {
			continue
		}
		out = append(out, si)
	}
	return out, nil
}

// doWithRetry runs one API call under the rate limiter and per-call
// timeout, retrying transient failures with exponential backoff. Client
// errors are permanent: retrying a quota or key failure only burns quota.
func doWithRetry[T any](c *Client, ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	operation := func() (T, error) {
		var zero T
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, backoff.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		result, err := call(callCtx)
		if err == nil {
			return result, nil
		}
		perr := Classify(err)
		if perr.Kind == KindUpstreamUnavailable || perr.Kind == KindRateLimited {
			return zero, err
		}
		return zero, backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(3),
		backoff.WithMaxElapsedTime(30*time.Second))
}

// service returns (building once) the API service bound to the given key.
func (c *Client) service(ctx context.Context, apiKey string) (*youtube.Service, error) {
	if apiKey == "" {
		return nil, &Error{Kind: KindInvalidCredential, err: fmt.Errorf("empty API key")}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if svc, ok := c.services[apiKey]; ok {
		return svc, nil
	}
	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	c.services[apiKey] = svc
	return svc, nil
}

func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	switch {
	case t.Medium != nil:
		return t.Medium.Url
	case t.High != nil:
		return t.High.Url
	case t.Default != nil:
		return t.Default.Url
	}
	return ""
}
