// Package keywords turns a free-text topic into a prioritized set of
// search keywords, using Gemini when available and a deterministic local
// generator otherwise.
package keywords

import (
	"context"
	"strings"
)

const (
	// MaxKeywords caps the expanded set; anything past this is noise that
	// would only burn quota.
	MaxKeywords = 15

	// MaxKeywordLen drops degenerate suggestions (full sentences etc.).
	MaxKeywordLen = 50
)

// Expander produces candidate search keywords for a topic. Implementations
// may fail; callers fall back to Fallback.
type Expander interface {
	Expand(ctx context.Context, topic string) ([]string, error)
}

// fallbackSuffixes are appended to the raw topic when no AI expansion is
// available. Ordered: the bare topic always ranks first.
var fallbackSuffixes = []string{
	"", "review", "tutorial", "guide", "tips", "for beginners",
}

// Fallback deterministically derives keywords from the topic alone.
func Fallback(topic string) []string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return nil
	}
	out := make([]string, 0, len(fallbackSuffixes))
	for _, s := range fallbackSuffixes {
		if s == "" {
			out = append(out, topic)
			continue
		}
		out = append(out, topic+" "+s)
	}
	return Normalize(out, topic)
}

// Normalize lower-cases, trims, dedupes, and caps the keyword set. The
// topic itself is always included so an exact search is never lost.
func Normalize(kws []string, topic string) []string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	seen := make(map[string]struct{})
	var out []string

	add := func(k string) {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || len(k) > MaxKeywordLen {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}

	add(topic)
	for _, k := range kws {
		if len(out) >= MaxKeywords {
			break
		}
		add(k)
	}
	return out
}

// Prioritize orders keywords by closeness to the original topic so that
// exact-product searches are not diluted by loosely related suggestions.
// Scoring: +100 contains the full topic, +50 starts with it, +20 per
// contained significant topic word (len > 2). Stable on ties.
func Prioritize(kws []string, topic string) []string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if len(kws) < 2 {
		return kws
	}

	type scored struct {
		kw    string
		score int
		idx   int
	}
	items := make([]scored, len(kws))
	for i, k := range kws {
		items[i] = scored{kw: k, score: priorityScore(k, topic), idx: i}
	}

	// Insertion sort keeps the original order within equal scores; the
	// set is tiny (≤15).
	for i := 1; i < len(items); i++ {
		for j := i; j > 0; j-- {
			if items[j].score > items[j-1].score {
				items[j], items[j-1] = items[j-1], items[j]
			} else {
				break
			}
		}
	}

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.kw
	}
	return out
}

func priorityScore(keyword, topic string) int {
	keyword = strings.ToLower(keyword)
	score := 0
	if strings.Contains(keyword, topic) {
		score += 100
	}
	if strings.HasPrefix(keyword, topic) {
		score += 50
	}
	for _, w := range strings.Fields(topic) {
		if len([]rune(w)) > 2 && strings.Contains(keyword, w) {
			score += 20
		}
	}
	return score
}
