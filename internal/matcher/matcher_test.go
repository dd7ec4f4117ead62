package matcher

import (
	"reflect"
	"testing"
)

func TestMatchRules(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want Rule
	}{
		{"exact after trim and case fold", "  Half Marathon ", "half marathon", Exact},
		{"full width folds", "１０ＫＭ", "10km", Exact},
		{"containment ignores group suffix", "半程马拉松组", "半程马拉松", Containment},
		{"containment of shorter name", "精英半程马拉松", "半程马拉松", Containment},
		{"numeric with different units", "10公里", "10km", NumericTokens},
		{"numeric ignores decoration", "10公里精英组", "10K", NumericTokens},
		{"keyword half", "半程马拉松", "半马", Keyword},
		{"keyword full", "全程马拉松", "全马", Keyword},
		{"keyword mini", "迷你跑", "Mini Run", Keyword},
		{"full is not ten", "全程马拉松", "10公里", NoMatch},
		{"half is not full", "半程马拉松", "全程马拉松", NoMatch},
		{"five is not fifteen", "5公里", "15公里", NoMatch},
		{"containment never splits numbers", "5公里迷你跑", "15公里迷你跑", NoMatch},
		{"empty never matches", "", "", NoMatch},
	}
	m := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Match(tt.a, tt.b); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := m.Match(tt.b, tt.a); got != tt.want {
				t.Errorf("Match is not symmetric for %q, %q: %v", tt.b, tt.a, got)
			}
		})
	}
}

func TestEquivalent(t *testing.T) {
	if !Default.Equivalent("半程马拉松", "半马") {
		t.Error("半程马拉松 and 半马 should be equivalent")
	}
	if Default.Equivalent("全程马拉松", "10公里") {
		t.Error("全程马拉松 and 10公里 should not be equivalent")
	}
}

func TestBest(t *testing.T) {
	stored := []string{"全程马拉松", "半程马拉松", "10公里", "迷你跑"}

	tests := []struct {
		name      string
		input     string
		wantIndex int
		wantRule  Rule
		ambiguous bool
	}{
		{"exact beats everything", "半程马拉松", 1, Exact, false},
		{"keyword", "半马", 1, Keyword, false},
		{"numeric", "10K", 2, NumericTokens, false},
		{"ambiguous prefers first stored", "马拉松", 0, Containment, true},
		{"no match", "铁人三项", -1, NoMatch, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Default.Best(tt.input, stored)
			if res.Index != tt.wantIndex || res.Rule != tt.wantRule {
				t.Errorf("Best(%q) = (%d, %v), want (%d, %v)", tt.input, res.Index, res.Rule, tt.wantIndex, tt.wantRule)
			}
			if res.Ambiguous() != tt.ambiguous {
				t.Errorf("Best(%q).Ambiguous() = %v, ties %v", tt.input, res.Ambiguous(), res.Ties)
			}
		})
	}
}

func TestNumbers(t *testing.T) {
	got := Numbers("42.1950公里 (42.195km)")
	if want := []string{"42.195"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Numbers() = %v, want %v", got, want)
	}
	if got := Numbers("半马"); len(got) != 0 {
		t.Errorf("Numbers(半马) = %v, want none", got)
	}
}

func TestCategory(t *testing.T) {
	tests := map[string]string{
		"半程马拉松":   "half",
		"Half":    "half",
		"全程马拉松":   "full",
		"marathon": "full",
		"迷你跑":    "mini",
		"迷你马拉松":   "mini",
		"健康跑":    "fun",
	}
	for name, want := range tests {
		if got, ok := Default.Category(name); !ok || got != want {
			t.Errorf("Category(%q) = %q, %v; want %q", name, got, ok, want)
		}
	}
	if _, ok := Default.Category("10公里"); ok {
		t.Error("10公里 has no keyword category")
	}
}

func TestCustomOptions(t *testing.T) {
	m := New(&Options{Categories: []Category{{Name: "ultra", Keywords: []string{"超马", "ultra"}}}})
	if m.Match("100公里超马", "Ultra Trail") != Keyword {
		t.Error("custom category should drive the keyword rule")
	}
	if m.Match("半程马拉松", "半马") != NoMatch {
		t.Error("default categories should be replaced")
	}
}

func BenchmarkBest(b *testing.B) {
	stored := []string{"全程马拉松", "半程马拉松", "10公里", "5公里", "迷你跑", "健康跑"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Default.Best("半马", stored)
	}
}
