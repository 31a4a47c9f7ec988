package keywords

import (
	"reflect"
	"testing"
)

func TestFallbackDeterministic(t *testing.T) {
	a := Fallback("Fitness")
	b := Fallback("fitness")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("fallback not deterministic: %v != %v", a, b)
	}
	if len(a) == 0 || a[0] != "fitness" {
		t.Errorf("expected bare topic first, got %v", a)
	}
}

func TestFallbackEmptyTopic(t *testing.T) {
	if got := Fallback("   "); got != nil {
		t.Errorf("expected nil for blank topic, got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	t.Run("dedupes and lower-cases", func(t *testing.T) {
		got := Normalize([]string{"Fitness", "FITNESS", "yoga"}, "fitness")
		want := []string{"fitness", "yoga"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Normalize = %v, want %v", got, want)
		}
	})

	t.Run("drops overlong suggestions", func(t *testing.T) {
		long := "this suggestion is way too long to be a useful youtube search keyword at all"
		got := Normalize([]string{long}, "fitness")
		for _, k := range got {
			if len(k) > MaxKeywordLen {
				t.Errorf("keyword %q exceeds %d chars", k, MaxKeywordLen)
			}
		}
	})

	t.Run("caps total count", func(t *testing.T) {
		var many []string
		for i := 0; i < 40; i++ {
			many = append(many, string(rune('a'+i%26))+" workout")
		}
		got := Normalize(many, "fitness")
		if len(got) > MaxKeywords {
			t.Errorf("got %d keywords, cap is %d", len(got), MaxKeywords)
		}
	})

	t.Run("topic always present", func(t *testing.T) {
		got := Normalize([]string{"yoga", "pilates"}, "fitness")
		if len(got) == 0 || got[0] != "fitness" {
			t.Errorf("topic missing from %v", got)
		}
	})
}

func TestPrioritize(t *testing.T) {
	t.Run("exact topic beats loose terms", func(t *testing.T) {
		got := Prioritize([]string{"Acme X200 review", "routers", "Acme X200"}, "Acme X200")

		pos := func(k string) int {
			for i, v := range got {
				if v == k {
					return i
				}
			}
			t.Fatalf("%q missing from %v", k, got)
			return -1
		}
		if pos("Acme X200") >= pos("routers") || pos("Acme X200 review") >= pos("routers") {
			t.Errorf("topic-exact keywords must rank above %q: %v", "routers", got)
		}
	})

	t.Run("stable for equal scores", func(t *testing.T) {
		got := Prioritize([]string{"yoga", "pilates", "stretching"}, "fitness")
		want := []string{"yoga", "pilates", "stretching"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Prioritize reordered ties: %v", got)
		}
	})
}

func TestPriorityScore(t *testing.T) {
	tests := []struct {
		keyword string
		topic   string
		want    int
	}{
		{"acme x200", "acme x200", 190},         // contains +100, prefix +50, both words +40
		{"acme x200 review", "acme x200", 190},  // same, suffix irrelevant
		{"best acme x200 deals", "acme x200", 140}, // contains but not prefix
		{"acme accessories", "acme x200", 20},   // one significant word
		{"routers", "acme x200", 0},
	}
	for _, tt := range tests {
		if got := priorityScore(tt.keyword, tt.topic); got != tt.want {
			t.Errorf("priorityScore(%q, %q) = %d, want %d", tt.keyword, tt.topic, got, tt.want)
		}
	}
}

func TestStripFences(t *testing.T) {
	in := "```json\n[\"a\",\"b\"]\n```"
	if got := stripFences(in); got != "[\"a\",\"b\"]" {
		t.Errorf("stripFences = %q", got)
	}
}
