package relevance

import "testing"

func TestChannelScoreBounds(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		videos      []string
		subs        uint64
		keyword     string
	}{
		{"empty keyword", "Fitness Pro", "daily workouts", nil, 5000, ""},
		{"full match everywhere", "fitness channel", "all about fitness", []string{"fitness 1", "fitness 2", "fitness 3"}, 2_000_000, "fitness"},
		{"no match tiny channel", "cooking", "recipes", nil, 10, "quantum computing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChannelScore(tt.title, tt.description, tt.videos, tt.subs, tt.keyword)
			if got < 0 || got > MaxBaseScore {
				t.Errorf("ChannelScore = %d, want within [0,%d]", got, MaxBaseScore)
			}
		})
	}
}

func TestChannelScoreComposition(t *testing.T) {
	// title +30, description +20, 3 videos +24, >1M subs +25 = 99
	got := ChannelScore(
		"Acme X200 Reviews",
		"everything acme x200",
		[]string{"Acme X200 unboxing", "Acme X200 vs rivals", "Acme X200 long term"},
		1_500_000,
		"acme x200",
	)
	if got != 99 {
		t.Errorf("ChannelScore = %d, want 99", got)
	}
}

func TestChannelScoreVideoBonusCap(t *testing.T) {
	// Only the first three video titles count, capped at +25 (3×8=24 here).
	withThree := ChannelScore("x", "y", []string{"fitness a", "fitness b", "fitness c"}, 0, "fitness")
	withFive := ChannelScore("x", "y", []string{"fitness a", "fitness b", "fitness c", "fitness d", "fitness e"}, 0, "fitness")
	if withThree != withFive {
		t.Errorf("video bonus not capped at 3 titles: %d != %d", withThree, withFive)
	}
}

func TestSubscriberTiers(t *testing.T) {
	tests := []struct {
		subs uint64
		want int
	}{
		{2_000_000, 25},
		{500_000, 20},
		{50_000, 15},
		{5_000, 10},
		{100, 5},
		{0, 5},
	}
	for _, tt := range tests {
		if got := subscriberTierBonus(tt.subs); got != tt.want {
			t.Errorf("subscriberTierBonus(%d) = %d, want %d", tt.subs, got, tt.want)
		}
	}
}

func TestTopicBonus(t *testing.T) {
	t.Run("zero when topic equals keyword", func(t *testing.T) {
		if got := TopicBonus("Acme X200 review", nil, "acme x200", "acme x200"); got != 0 {
			t.Errorf("TopicBonus = %d, want 0", got)
		}
	})

	t.Run("exact title match", func(t *testing.T) {
		got := TopicBonus("The Acme X200 story", nil, "acme x200", "routers")
		if got != 20 {
			t.Errorf("TopicBonus = %d, want 20", got)
		}
	})

	t.Run("video title adds ten", func(t *testing.T) {
		got := TopicBonus("The Acme X200 story", []string{"why the acme x200 wins"}, "acme x200", "routers")
		if got != 30 {
			t.Errorf("TopicBonus = %d, want 30", got)
		}
	})

	t.Run("partial word match below exact", func(t *testing.T) {
		got := TopicBonus("Acme gear roundup", nil, "acme x200", "routers")
		if got <= 0 || got >= 20 {
			t.Errorf("TopicBonus = %d, want in (0,20)", got)
		}
	})
}

func TestCombinedScoreClamp(t *testing.T) {
	if got := CombinedScore(99, 30, 24); got != MaxCombinedScore {
		t.Errorf("CombinedScore = %d, want %d", got, MaxCombinedScore)
	}
	if got := CombinedScore(40, 0, 12); got != 52 {
		t.Errorf("CombinedScore = %d, want 52", got)
	}
}

func TestVideoTitleScore(t *testing.T) {
	t.Run("exact substring is perfect", func(t *testing.T) {
		if got := VideoTitleScore("Acme X200 full review", "acme x200"); got != 1.0 {
			t.Errorf("score = %.2f, want 1.0", got)
		}
	})

	t.Run("bounded to [0,1]", func(t *testing.T) {
		titles := []string{
			"acme router review tutorial guide",
			"completely unrelated",
			"",
		}
		for _, title := range titles {
			got := VideoTitleScore(title, "acme x200 mesh router")
			if got < 0 || got > 1 {
				t.Errorf("score %.2f out of [0,1] for %q", got, title)
			}
		}
	})

	t.Run("intent word lifts score", func(t *testing.T) {
		plain := VideoTitleScore("talking about routers today", "acme router")
		intent := VideoTitleScore("routers review today", "acme router")
		if intent <= plain {
			t.Errorf("intent %.2f should beat plain %.2f", intent, plain)
		}
	})

	t.Run("no keyword no score", func(t *testing.T) {
		if got := VideoTitleScore("anything", ""); got != 0 {
			t.Errorf("score = %.2f, want 0", got)
		}
	})
}
