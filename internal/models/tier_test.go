package models

import "testing"

func TestResolveTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		plan string
		want Tier
	}{
		{name: "free", plan: "free", want: TierFree},
		{name: "basic", plan: "basic", want: TierBasic},
		{name: "plus", plan: "plus", want: TierPlus},
		{name: "pro", plan: "pro", want: TierPro},
		{name: "legacy premium alias", plan: "premium", want: TierBasic},
		{name: "uppercase", plan: "PRO", want: TierPro},
		{name: "surrounding whitespace", plan: "  plus \t", want: TierPlus},
		{name: "empty", plan: "", want: TierFree},
		{name: "unknown plan fails closed", plan: "enterprise", want: TierFree},
		{name: "garbage fails closed", plan: "pro'; DROP TABLE plans;--", want: TierFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ResolveTier(tt.plan); got != tt.want {
				t.Errorf("ResolveTier(%q) = %q, want %q", tt.plan, got, tt.want)
			}
		})
	}
}

func TestTier_Ordering(t *testing.T) {
	t.Parallel()

	for i := 1; i < len(Tiers); i++ {
		lower, higher := Tiers[i-1], Tiers[i]
		if higher.Rank() <= lower.Rank() {
			t.Errorf("Expected %s to outrank %s", higher, lower)
		}
		if !higher.AtLeast(lower) {
			t.Errorf("Expected %s.AtLeast(%s) to be true", higher, lower)
		}
		if lower.AtLeast(higher) {
			t.Errorf("Expected %s.AtLeast(%s) to be false", lower, higher)
		}
	}

	if got := Tier("enterprise").Rank(); got != 0 {
		t.Errorf("Expected unknown tier to rank as free (0), got %d", got)
	}
}
