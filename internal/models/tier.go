package models

import "strings"

// Tier is a discrete service level used to gate feature access and quotas.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPlus  Tier = "plus"
	TierPro   Tier = "pro"
)

// Tiers lists all tiers in ascending entitlement order.
var Tiers = []Tier{TierFree, TierBasic, TierPlus, TierPro}

var tierRank = map[Tier]int{
	TierFree:  0,
	TierBasic: 1,
	TierPlus:  2,
	TierPro:   3,
}

// Rank returns the entitlement rank of the tier (free=0 .. pro=3).
// Unknown tiers rank as free.
func (t Tier) Rank() int {
	return tierRank[t]
}

// AtLeast reports whether t grants at least the entitlement of other.
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank()
}

// IsValid reports whether t is one of the known tiers.
func (t Tier) IsValid() bool {
	_, ok := tierRank[t]
	return ok
}

func (t Tier) String() string {
	return string(t)
}

// ResolveTier maps a raw plan identifier to a Tier. The mapping is total and
// fail-closed: empty, unknown, or garbage input resolves to TierFree, never to
// an elevated tier. "premium" is a legacy alias for the basic plan.
func ResolveTier(plan string) Tier {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case "basic", "premium":
		return TierBasic
	case "plus":
		return TierPlus
	case "pro":
		return TierPro
	case "free":
		return TierFree
	default:
		return TierFree
	}
}
