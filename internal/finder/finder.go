// Package finder is the search orchestration engine: it turns one user
// topic into multiple platform queries, deduplicates and ranks the
// candidates, and caches the finished result set.
package finder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/KevinWangQQ/youtube-influencer-finder/internal/cache"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/credential"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/keywords"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/platform"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/relevance"
)

// ErrEmptyTopic rejects searches with a blank topic.
var ErrEmptyTopic = errors.New("finder: empty topic")

// variantSuffixes expand the top-priority keyword into intent-specific
// query variants. The empty suffix keeps the bare keyword.
var variantSuffixes = []string{"", "review", "unboxing", "test", "hands on"}

// detailBatchSize is the id cap per entity batch-fetch call.
const detailBatchSize = 50

// PlatformClient is the upstream surface the orchestrator needs. Satisfied
// by *platform.Client; tests substitute fakes.
type PlatformClient interface {
	SearchChannels(ctx context.Context, apiKey, query, region string, limit int64) ([]platform.SearchItem, error)
	SearchVideos(ctx context.Context, apiKey, query, region string, limit int64) ([]platform.SearchItem, error)
	SearchChannelVideos(ctx context.Context, apiKey, channelID, query string, limit int64) ([]platform.SearchItem, error)
	ChannelDetails(ctx context.Context, apiKey string, ids []string) ([]platform.ChannelDetail, error)
	VideoDetails(ctx context.Context, apiKey string, ids []string) ([]platform.VideoDetail, error)
}

// Options tune fan-out width and quota spend per search.
type Options struct {
	PerCallCap         int64 // results per text-search call
	EnrichSample       int64 // videos sampled per channel before top-3 pick
	VariantConcurrency int
	EnrichConcurrency  int
	CorroborationBoost int // score increment per repeat discovery
}

// DefaultOptions match the product's quota budget.
func DefaultOptions() Options {
	return Options{
		PerCallCap:         15,
		EnrichSample:       20,
		VariantConcurrency: 3,
		EnrichConcurrency:  4,
		CorroborationBoost: 12,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.PerCallCap <= 0 {
		o.PerCallCap = d.PerCallCap
	}
	if o.EnrichSample <= 0 {
		o.EnrichSample = d.EnrichSample
	}
	if o.VariantConcurrency <= 0 {
		o.VariantConcurrency = d.VariantConcurrency
	}
	if o.EnrichConcurrency <= 0 {
		o.EnrichConcurrency = d.EnrichConcurrency
	}
	if o.CorroborationBoost <= 0 {
		o.CorroborationBoost = d.CorroborationBoost
	}
	return o
}

// Finder coordinates keyword expansion, platform fan-out, ranking, and
// caching. Dependencies are injected; the Finder holds no global state.
type Finder struct {
	client   PlatformClient
	pool     *credential.Pool
	cache    *cache.Cache
	expander keywords.Expander // nil: local fallback only
	log      *slog.Logger
	opts     Options
}

// New wires a Finder from its collaborators.
func New(client PlatformClient, pool *credential.Pool, c *cache.Cache, expander keywords.Expander, logger *slog.Logger, opts Options) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{
		client:   client,
		pool:     pool,
		cache:    c,
		expander: expander,
		log:      logger,
		opts:     opts.normalized(),
	}
}

// Search runs one topic search end to end. Zero upstream matches yield an
// empty result, never an error; a pool-wide credential outage or total
// upstream failure yields a typed error.
func (f *Finder) Search(ctx context.Context, q SearchQuery) (*Result, error) {
	topic := strings.TrimSpace(q.Topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	q.Filters = q.Filters.WithDefaults()
	if q.Mode == "" {
		q.Mode = ModeChannel
	}

	cred, err := f.pool.Current()
	if err != nil {
		searchesTotal.WithLabelValues(string(q.Mode), "error").Inc()
		return nil, err
	}
	key := f.cacheKey(q, cred.ID)

	if !q.ForceRefresh {
		if data, ok := f.cache.Get(ctx, key); ok {
			var res Result
			if err := json.Unmarshal(data, &res); err == nil {
				res.FromCache = true
				searchesTotal.WithLabelValues(string(q.Mode), "cached").Inc()
				f.log.Debug("search served from cache", slog.String("topic", topic))
				return &res, nil
			}
			f.cache.Invalidate(ctx, key)
		}
	}

	start := time.Now()
	primary := f.primaryKeyword(ctx, topic)
	variants := buildVariants(primary)

	f.log.Info("search started",
		slog.String("topic", topic),
		slog.String("keyword", primary),
		slog.String("mode", string(q.Mode)),
		slog.Int("variants", len(variants)))

	res := &Result{Topic: topic, Mode: q.Mode, Keyword: primary}
	switch q.Mode {
	case ModeVideo:
		err = f.runVideoSearch(ctx, q, topic, primary, variants, res)
	default:
		err = f.runChannelSearch(ctx, q, topic, primary, variants, res)
	}
	if err != nil {
		searchesTotal.WithLabelValues(string(q.Mode), "error").Inc()
		return nil, err
	}

	searchDuration.Observe(time.Since(start).Seconds())
	outcome := "ok"
	if res.Partial {
		outcome = "partial"
	}
	searchesTotal.WithLabelValues(string(q.Mode), outcome).Inc()

	if data, err := json.Marshal(res); err == nil {
		f.cache.Set(ctx, key, data)
	}

	f.log.Info("search complete",
		slog.String("topic", topic),
		slog.Int("results", res.Len()),
		slog.Bool("partial", res.Partial),
		slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
	return res, nil
}

// primaryKeyword expands the topic and narrows to the single
// highest-priority keyword to conserve quota.
func (f *Finder) primaryKeyword(ctx context.Context, topic string) string {
	var raw []string
	if f.expander != nil {
		var err error
		raw, err = f.expander.Expand(ctx, topic)
		if err != nil {
			f.log.Warn("keyword expansion failed, using local fallback", slog.Any("error", err))
			raw = nil
		}
	}

	var kws []string
	if len(raw) > 0 {
		kws = keywords.Normalize(raw, topic)
	} else {
		kws = keywords.Fallback(topic)
	}
	kws = keywords.Prioritize(kws, topic)
	return kws[0]
}

func buildVariants(keyword string) []string {
	out := make([]string, 0, len(variantSuffixes))
	for _, s := range variantSuffixes {
		if s == "" {
			out = append(out, keyword)
			continue
		}
		out = append(out, keyword+" "+s)
	}
	return out
}

// cacheKey derives a stable key from the query, the credential identity,
// and the pool generation, so credential changes invalidate implicitly.
func (f *Finder) cacheKey(q SearchQuery, credID string) string {
	return cache.Key(
		"topic="+strings.ToLower(strings.TrimSpace(q.Topic)),
		"mode="+string(q.Mode),
		"region="+q.Filters.Region,
		fmt.Sprintf("minsubs=%d", q.Filters.MinSubscribers),
		fmt.Sprintf("minviews=%d", q.Filters.MinViews),
		fmt.Sprintf("max=%d", q.Filters.MaxResults),
		"cred="+credID,
		fmt.Sprintf("gen=%d", f.pool.Generation()),
	)
}

// hit tracks one deduplicated candidate and how many variants found it.
type hit struct {
	item platform.SearchItem
	hits int
}

// fanOut issues the query variants with bounded parallelism and merges
// results into the caller's accumulator behind one mutex.
func (f *Finder) fanOut(variants []string, call func(variant string) ([]platform.SearchItem, error), merge func(platform.SearchItem)) (failed int, lastErr error) {
	sem := make(chan struct{}, f.opts.VariantConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, v := range variants {
		wg.Add(1)
		go func(variant string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			items, err := call(variant)
			if err != nil {
				f.log.Warn("query variant failed",
					slog.String("variant", variant),
					slog.Any("error", err))
				mu.Lock()
				failed++
				lastErr = err
				mu.Unlock()
				return
			}
			mu.Lock()
			for _, it := range items {
				merge(it)
			}
			mu.Unlock()
		}(v)
	}
	wg.Wait()
	return failed, lastErr
}

func (f *Finder) runChannelSearch(ctx context.Context, q SearchQuery, topic, primary string, variants []string, res *Result) error {
	agg := make(map[string]*hit)
	failed, lastErr := f.fanOut(variants, func(variant string) ([]platform.SearchItem, error) {
		return withRotation(ctx, f, "search.channels", platform.SearchCost, func(key string) ([]platform.SearchItem, error) {
			return f.client.SearchChannels(ctx, key, variant, q.Filters.Region, f.opts.PerCallCap)
		})
	}, func(it platform.SearchItem) {
		if it.ChannelID == "" {
			return
		}
		if ex, ok := agg[it.ChannelID]; ok {
			ex.hits++
		} else {
			agg[it.ChannelID] = &hit{item: it, hits: 1}
		}
	})

	res.Partial = failed > 0 && failed < len(variants)
	if len(agg) == 0 {
		if failed == len(variants) && lastErr != nil {
			return lastErr
		}
		res.Channels = []ChannelCandidate{}
		return nil
	}

	ids := make([]string, 0, len(agg))
	for id := range agg {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	descriptions := make(map[string]string)
	var candidates []ChannelCandidate
	for _, chunk := range chunkIDs(ids, detailBatchSize) {
		details, err := withRotation(ctx, f, "channels.list", platform.ListCost, func(key string) ([]platform.ChannelDetail, error) {
			return f.client.ChannelDetails(ctx, key, chunk)
		})
		if err != nil {
			if errors.Is(err, credential.ErrNoActiveCredential) {
				return err
			}
			f.log.Warn("channel detail fetch failed, dropping batch", slog.Any("error", err))
			res.Partial = true
			continue
		}
		for _, d := range details {
			descriptions[d.ID] = d.Description
			candidates = append(candidates, ChannelCandidate{
				ChannelID:       d.ID,
				Title:           d.Title,
				URL:             "https://www.youtube.com/channel/" + d.ID,
				ThumbnailURL:    d.ThumbnailURL,
				SubscriberCount: d.Subscribers,
				TotalViewCount:  d.TotalViews,
				VideoCount:      d.Videos,
				Country:         d.Country,
			})
		}
	}

	// Audience filters run before enrichment so excluded channels cost no
	// further quota.
	prefiltered := candidates[:0]
	for _, c := range candidates {
		if c.SubscriberCount < q.Filters.MinSubscribers {
			continue
		}
		if c.TotalViewCount < q.Filters.MinViews {
			continue
		}
		prefiltered = append(prefiltered, c)
	}
	candidates = prefiltered

	f.enrichChannels(ctx, candidates, primary)

	for i := range candidates {
		c := &candidates[i]
		titles := videoTitles(c.TopVideos)
		base := relevance.ChannelScore(c.Title, descriptions[c.ChannelID], titles, c.SubscriberCount, primary)
		bonus := relevance.TopicBonus(c.Title, titles, topic, primary)
		corroboration := (agg[c.ChannelID].hits - 1) * f.opts.CorroborationBoost
		c.RelevanceScore = relevance.CombinedScore(base, bonus, corroboration)
	}

	kept := make([]ChannelCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.RelevanceScore < relevance.MinChannelScore {
			continue
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool { return lessChannel(kept[i], kept[j]) })
	if len(kept) > q.Filters.MaxResults {
		kept = kept[:q.Filters.MaxResults]
	}
	res.Channels = kept
	return nil
}

// enrichChannels attaches up to three top videos per channel with a
// bounded worker pool. Enrichment failures degrade the channel, never the
// search.
func (f *Finder) enrichChannels(ctx context.Context, candidates []ChannelCandidate, keyword string) {
	sem := make(chan struct{}, f.opts.EnrichConcurrency)
	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		go func(c *ChannelCandidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			c.TopVideos = f.topVideos(ctx, c.ChannelID, keyword)
		}(&candidates[i])
	}
	wg.Wait()
}

func (f *Finder) topVideos(ctx context.Context, channelID, keyword string) []VideoCandidate {
	items, err := withRotation(ctx, f, "search.channel_videos", platform.SearchCost, func(key string) ([]platform.SearchItem, error) {
		return f.client.SearchChannelVideos(ctx, key, channelID, keyword, f.opts.EnrichSample)
	})
	if err != nil {
		f.log.Warn("channel enrichment failed",
			slog.String("channel", channelID),
			slog.Any("error", err))
		return nil
	}

	type scoredItem struct {
		item platform.SearchItem
		rel  float64
	}
	var top []scoredItem
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		rel := relevance.VideoTitleScore(it.Title, keyword)
		if rel <= relevance.VideoRelevanceFloor {
			continue
		}
		top = append(top, scoredItem{item: it, rel: rel})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].rel > top[j].rel })
	if len(top) > 3 {
		top = top[:3]
	}
	if len(top) == 0 {
		return nil
	}

	ids := make([]string, len(top))
	for i, s := range top {
		ids[i] = s.item.VideoID
	}
	byID := make(map[string]platform.VideoDetail)
	details, err := withRotation(ctx, f, "videos.list", platform.ListCost, func(key string) ([]platform.VideoDetail, error) {
		return f.client.VideoDetails(ctx, key, ids)
	})
	if err != nil {
		f.log.Warn("video detail fetch failed", slog.Any("error", err))
	}
	for _, d := range details {
		byID[d.ID] = d
	}

	out := make([]VideoCandidate, 0, len(top))
	for _, s := range top {
		v := VideoCandidate{
			VideoID:        s.item.VideoID,
			Title:          s.item.Title,
			Description:    s.item.Description,
			PublishedAt:    s.item.PublishedAt,
			ThumbnailURL:   s.item.ThumbnailURL,
			URL:            "https://www.youtube.com/watch?v=" + s.item.VideoID,
			ChannelID:      channelID,
			ChannelTitle:   s.item.ChannelTitle,
			RelevanceScore: int(s.rel*100 + 0.5),
		}
		if d, ok := byID[s.item.VideoID]; ok {
			v.ViewCount = d.Views
			v.LikeCount = d.Likes
			v.CommentCount = d.Comments
			v.Duration = d.Duration
			if !d.PublishedAt.IsZero() {
				v.PublishedAt = d.PublishedAt
			}
		}
		out = append(out, v)
	}
	return out
}

func (f *Finder) runVideoSearch(ctx context.Context, q SearchQuery, topic, primary string, variants []string, res *Result) error {
	agg := make(map[string]*hit)
	failed, lastErr := f.fanOut(variants, func(variant string) ([]platform.SearchItem, error) {
		return withRotation(ctx, f, "search.videos", platform.SearchCost, func(key string) ([]platform.SearchItem, error) {
			return f.client.SearchVideos(ctx, key, variant, q.Filters.Region, f.opts.PerCallCap)
		})
	}, func(it platform.SearchItem) {
		if it.VideoID == "" {
			return
		}
		if ex, ok := agg[it.VideoID]; ok {
			ex.hits++
		} else {
			agg[it.VideoID] = &hit{item: it, hits: 1}
		}
	})

	res.Partial = failed > 0 && failed < len(variants)
	if len(agg) == 0 {
		if failed == len(variants) && lastErr != nil {
			return lastErr
		}
		res.Videos = []VideoCandidate{}
		return nil
	}

	ids := make([]string, 0, len(agg))
	for id := range agg {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	details := make(map[string]platform.VideoDetail)
	for _, chunk := range chunkIDs(ids, detailBatchSize) {
		batch, err := withRotation(ctx, f, "videos.list", platform.ListCost, func(key string) ([]platform.VideoDetail, error) {
			return f.client.VideoDetails(ctx, key, chunk)
		})
		if err != nil {
			if errors.Is(err, credential.ErrNoActiveCredential) {
				return err
			}
			f.log.Warn("video detail fetch failed, dropping batch", slog.Any("error", err))
			res.Partial = true
			continue
		}
		for _, d := range batch {
			details[d.ID] = d
		}
	}

	// Denormalized channel stats for filtering and display.
	channelIDs := make(map[string]struct{})
	for _, d := range details {
		if d.ChannelID != "" {
			channelIDs[d.ChannelID] = struct{}{}
		}
	}
	chIDs := make([]string, 0, len(channelIDs))
	for id := range channelIDs {
		chIDs = append(chIDs, id)
	}
	sort.Strings(chIDs)

	channels := make(map[string]platform.ChannelDetail)
	for _, chunk := range chunkIDs(chIDs, detailBatchSize) {
		batch, err := withRotation(ctx, f, "channels.list", platform.ListCost, func(key string) ([]platform.ChannelDetail, error) {
			return f.client.ChannelDetails(ctx, key, chunk)
		})
		if err != nil {
			if errors.Is(err, credential.ErrNoActiveCredential) {
				return err
			}
			f.log.Warn("channel stats fetch failed", slog.Any("error", err))
			res.Partial = true
			continue
		}
		for _, d := range batch {
			channels[d.ID] = d
		}
	}

	kept := make([]VideoCandidate, 0, len(ids))
	for _, id := range ids {
		d, ok := details[id]
		if !ok {
			continue
		}
		rel := relevance.VideoTitleScore(d.Title, primary)
		if rel <= relevance.VideoRelevanceFloor {
			continue
		}
		ch := channels[d.ChannelID]
		if d.Views < q.Filters.MinViews || ch.Subscribers < q.Filters.MinSubscribers {
			continue
		}
		bonus := relevance.TopicBonus(d.Title, nil, topic, primary)
		corroboration := (agg[id].hits - 1) * f.opts.CorroborationBoost
		kept = append(kept, VideoCandidate{
			VideoID:        id,
			Title:          d.Title,
			Description:    d.Description,
			PublishedAt:    d.PublishedAt,
			ViewCount:      d.Views,
			LikeCount:      d.Likes,
			CommentCount:   d.Comments,
			Duration:       d.Duration,
			ThumbnailURL:   d.ThumbnailURL,
			URL:            "https://www.youtube.com/watch?v=" + id,
			ChannelID:      d.ChannelID,
			ChannelTitle:   ch.Title,
			ChannelSubs:    ch.Subscribers,
			RelevanceScore: relevance.CombinedScore(int(rel*100+0.5), bonus, corroboration),
		})
	}

	sort.SliceStable(kept, func(i, j int) bool { return lessVideo(kept[i], kept[j]) })
	if len(kept) > q.Filters.MaxResults {
		kept = kept[:q.Filters.MaxResults]
	}
	res.Videos = kept
	return nil
}

// withRotation runs one platform call under the current credential,
// rotating and retrying exactly once on a credential failure to bound
// latency.
func withRotation[T any](ctx context.Context, f *Finder, op string, cost int64, call func(apiKey string) (T, error)) (T, error) {
	var zero T

	cred, err := f.pool.Current()
	if err != nil {
		return zero, err
	}

	out, err := f.attempt(op, cost, cred, func() (any, error) { return call(cred.Key) })
	if err == nil {
		return out.(T), nil
	}
	perr := platform.Classify(err)
	if !perr.CredentialFailure() {
		return zero, perr
	}

	f.pool.RecordFailure(cred.ID, perr)
	if f.pool.Rotate() {
		rotationsTotal.Inc()
	}
	// Rotate returns false when a concurrent caller already moved the
	// cursor off the failed credential; Current is the authority on
	// whether anything is left to retry with.
	next, err := f.pool.Current()
	if err != nil {
		return zero, fmt.Errorf("%w: last upstream error: %v", credential.ErrNoActiveCredential, perr)
	}
	out, err = f.attempt(op, cost, next, func() (any, error) { return call(next.Key) })
	if err == nil {
		return out.(T), nil
	}
	perr = platform.Classify(err)
	if perr.CredentialFailure() {
		f.pool.RecordFailure(next.ID, perr)
	}
	return zero, perr
}

// attempt accounts usage and metrics around one upstream call.
func (f *Finder) attempt(op string, cost int64, cred credential.Credential, call func() (any, error)) (any, error) {
	out, err := call()
	f.pool.RecordUsage(cred.ID, cost)
	quotaUnits.WithLabelValues(cred.ID).Add(float64(cost))
	if err != nil {
		upstreamCalls.WithLabelValues(op, platform.Classify(err).Kind.String()).Inc()
		return nil, err
	}
	upstreamCalls.WithLabelValues(op, "ok").Inc()
	return out, nil
}

// lessChannel orders by score descending; scores within ScoreEpsilon count
// as tied and fall back to subscriber count.
func lessChannel(a, b ChannelCandidate) bool {
	diff := a.RelevanceScore - b.RelevanceScore
	if diff >= relevance.ScoreEpsilon || diff <= -relevance.ScoreEpsilon {
		return diff > 0
	}
	return a.SubscriberCount > b.SubscriberCount
}

// lessVideo is the video-mode ordering: ties break on view count.
func lessVideo(a, b VideoCandidate) bool {
	diff := a.RelevanceScore - b.RelevanceScore
	if diff >= relevance.ScoreEpsilon || diff <= -relevance.ScoreEpsilon {
		return diff > 0
	}
	return a.ViewCount > b.ViewCount
}

func chunkIDs(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func videoTitles(vs []VideoCandidate) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Title
	}
	return out
}
