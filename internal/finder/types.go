package finder

import "time"

// Mode selects what the result set is made of: whole channels with nested
// top videos, or videos as the top-level entity.
type Mode string

const (
	ModeChannel Mode = "channel"
	ModeVideo   Mode = "video"
)

// Filter defaults applied when a field is absent.
const (
	DefaultRegion         = "US"
	DefaultMinSubscribers = 1_000
	DefaultMinViews       = 10_000
	DefaultMaxResults     = 50
	MaxResultsCeiling     = 100
)

// SearchFilters bound a search. Immutable per invocation.
type SearchFilters struct {
	Region         string `json:"region"`
	MinSubscribers uint64 `json:"minSubscribers"`
	MinViews       uint64 `json:"minViews"`
	MaxResults     int    `json:"maxResults"`
}

// WithDefaults fills absent fields and clamps MaxResults to 1..100.
func (f SearchFilters) WithDefaults() SearchFilters {
	if f.Region == "" {
		f.Region = DefaultRegion
	}
	if f.MinSubscribers == 0 {
		f.MinSubscribers = DefaultMinSubscribers
	}
	if f.MinViews == 0 {
		f.MinViews = DefaultMinViews
	}
	if f.MaxResults <= 0 {
		f.MaxResults = DefaultMaxResults
	}
	if f.MaxResults > MaxResultsCeiling {
		f.MaxResults = MaxResultsCeiling
	}
	return f
}

// SearchQuery is one user-initiated search; the unit of cache-key
// derivation.
type SearchQuery struct {
	Topic        string        `json:"topic"`
	Filters      SearchFilters `json:"filters"`
	Mode         Mode          `json:"mode,omitempty"`
	ForceRefresh bool          `json:"forceRefresh,omitempty"`
}

// VideoCandidate is a discovered video. In channel mode it nests inside
// its channel; in video mode it is the top-level entity carrying a
// denormalized snapshot of the channel's public stats.
type VideoCandidate struct {
	VideoID        string    `json:"videoId"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	PublishedAt    time.Time `json:"publishedAt,omitzero"`
	ViewCount      uint64    `json:"viewCount"`
	LikeCount      uint64    `json:"likeCount,omitempty"`
	CommentCount   uint64    `json:"commentCount,omitempty"`
	Duration       string    `json:"duration,omitempty"`
	ThumbnailURL   string    `json:"thumbnailUrl,omitempty"`
	URL            string    `json:"url"`
	ChannelID      string    `json:"channelId"`
	ChannelTitle   string    `json:"channelTitle,omitempty"`
	ChannelSubs    uint64    `json:"channelSubscribers,omitempty"`
	RelevanceScore int       `json:"relevanceScore"`
}

// ChannelCandidate is a discovered channel with up to three top videos.
type ChannelCandidate struct {
	ChannelID       string           `json:"channelId"`
	Title           string           `json:"title"`
	URL             string           `json:"url"`
	ThumbnailURL    string           `json:"thumbnailUrl,omitempty"`
	SubscriberCount uint64           `json:"subscriberCount"`
	TotalViewCount  uint64           `json:"totalViewCount"`
	VideoCount      uint64           `json:"videoCount"`
	Country         string           `json:"country,omitempty"`
	TopVideos       []VideoCandidate `json:"topVideos,omitempty"`
	RelevanceScore  int              `json:"relevanceScore"`
}

// Result is the ranked outcome of one search.
type Result struct {
	Topic     string             `json:"topic"`
	Mode      Mode               `json:"mode"`
	Keyword   string             `json:"keyword"`
	Channels  []ChannelCandidate `json:"channels,omitempty"`
	Videos    []VideoCandidate   `json:"videos,omitempty"`
	Partial   bool               `json:"partial,omitempty"`
	FromCache bool               `json:"-"`
}

// Len returns the number of candidates regardless of mode.
func (r *Result) Len() int {
	if r.Mode == ModeVideo {
		return len(r.Videos)
	}
	return len(r.Channels)
}
