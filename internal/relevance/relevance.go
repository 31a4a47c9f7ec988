// Package relevance scores channels and videos against a search keyword
// and the user's original topic. All functions are pure and deterministic.
package relevance

import "strings"

// Score bounds and ranking thresholds. The combined ceiling sits above 100
// so exact-topic matches can outrank everything scored on keyword alone.
const (
	MaxBaseScore     = 100
	MaxCombinedScore = 120

	// MinChannelScore is the low-water floor on the 0–100/120 scale.
	// Channels scoring below it are dropped before ranking.
	MinChannelScore = 30

	// VideoRelevanceFloor excludes weakly matching videos ([0,1] scale).
	VideoRelevanceFloor = 0.4

	// ScoreEpsilon is the band within which two scores count as a tie and
	// ranking falls back to subscriber count (channels) or views (videos).
	ScoreEpsilon = 5
)

// intentWords mark review-style titles that signal creator coverage of a
// product or topic rather than incidental mentions.
var intentWords = []string{
	"review", "test", "unboxing", "setup", "comparison", "vs",
	"tutorial", "guide", "hands-on", "first look", "impressions",
}

// ChannelScore computes the 0–100 base relevance of a channel against a
// single keyword from its title, description, up to three video titles,
// and its subscriber tier.
func ChannelScore(title, description string, videoTitles []string, subscribers uint64, keyword string) int {
	title = strings.ToLower(title)
	description = strings.ToLower(description)
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return 0
	}

	score := 0

	if strings.Contains(title, keyword) {
		score += 30
	} else {
		score += int(wordOverlap(title, keyword) * 20)
	}

	if strings.Contains(description, keyword) {
		score += 20
	} else {
		score += int(wordOverlap(description, keyword) * 15)
	}

	videoBonus := 0
	for i, vt := range videoTitles {
		if i >= 3 {
			break
		}
		if strings.Contains(strings.ToLower(vt), keyword) {
			videoBonus += 8
		}
	}
	if videoBonus > 25 {
		videoBonus = 25
	}
	score += videoBonus

	score += subscriberTierBonus(subscribers)

	return clampInt(score, 0, MaxBaseScore)
}

// TopicBonus rewards candidates matching the user's original topic when the
// run was seeded from an AI-expanded keyword distinct from it. Additive on
// top of ChannelScore; the caller clamps the sum to MaxCombinedScore.
func TopicBonus(title string, videoTitles []string, topic, keyword string) int {
	topic = strings.ToLower(strings.TrimSpace(topic))
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if topic == "" || topic == keyword {
		return 0
	}
	title = strings.ToLower(title)

	bonus := 0
	if strings.Contains(title, topic) {
		bonus += 20
	} else {
		bonus += int(wordOverlap(title, topic) * 15)
	}

	for _, vt := range videoTitles {
		if strings.Contains(strings.ToLower(vt), topic) {
			bonus += 10
			break
		}
	}

	return bonus
}

// CombinedScore clamps base+bonus+corroboration to the documented ceiling.
func CombinedScore(base, bonus, corroboration int) int {
	return clampInt(base+bonus+corroboration, 0, MaxCombinedScore)
}

// VideoTitleScore rates a video title against a keyword on [0,1].
// Exact substring containment is a perfect match; otherwise the score
// blends exact and partial per-word match ratios with small bonuses for
// review-intent wording and early keyword placement.
func VideoTitleScore(title, keyword string) float64 {
	title = strings.ToLower(title)
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if title == "" || keyword == "" {
		return 0
	}

	if strings.Contains(title, keyword) {
		return 1.0
	}

	kwWords := significantWords(keyword)
	if len(kwWords) == 0 {
		return 0
	}

	exact := 0
	partial := 0
	titleWords := strings.Fields(title)
	for _, kw := range kwWords {
		matched := false
		for _, tw := range titleWords {
			if tw == kw {
				exact++
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if strings.Contains(title, kw) {
			partial++
		}
	}

	score := 0.8*float64(exact)/float64(len(kwWords)) + 0.3*float64(partial)/float64(len(kwWords))

	for _, w := range intentWords {
		if containsWord(title, w) {
			score += 0.15
			break
		}
	}

	head := title
	if len(head) > 50 {
		head = head[:50]
	}
	for _, kw := range kwWords {
		if strings.Contains(head, kw) {
			score += 0.1
			break
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}

// subscriberTierBonus maps audience size to a flat bonus. Bigger channels
// get a head start; everyone gets at least the base tier.
func subscriberTierBonus(subscribers uint64) int {
	switch {
	case subscribers > 1_000_000:
		return 25
	case subscribers > 100_000:
		return 20
	case subscribers > 10_000:
		return 15
	case subscribers > 1_000:
		return 10
	default:
		return 5
	}
}

// wordOverlap returns the fraction of significant keyword words (len > 2)
// contained in text.
func wordOverlap(text, keyword string) float64 {
	words := significantWords(keyword)
	if len(words) == 0 {
		return 0
	}
	matched := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}

// significantWords splits s into lower-cased words longer than two runes.
func significantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len([]rune(w)) > 2 {
			out = append(out, w)
		}
	}
	return out
}

// containsWord reports whether w appears in text as a standalone word or
// hyphenated fragment ("hands-on", "vs").
func containsWord(text, w string) bool {
	for _, tw := range strings.Fields(text) {
		tw = strings.Trim(tw, ".,:;!?()[]\"'")
		if tw == w {
			return true
		}
	}
	// Multi-word intent markers ("first look") fall back to substring.
	if strings.Contains(w, " ") || strings.Contains(w, "-") {
		return strings.Contains(text, w)
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
