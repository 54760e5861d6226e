package forge

const (
	// MinTier is the most common tier.
	MinTier = 0
	// MaxTier is the rarest tier. Upgrades never go past it.
	MaxTier = 9

	// BaseRollRange is the exclusive upper bound of a base roll.
	BaseRollRange = 1_000_000_000
	// UpgradeRollRange is the exclusive upper bound of an upgrade roll, in basis points.
	UpgradeRollRange = 10_000
)

// tierThresholds is ordered rarest first. A base roll strictly below thresholds[i]
// maps to tier MaxTier-i; boundary values therefore belong to the rarer tier.
var tierThresholds = [MaxTier]uint64{
	1,
	10,
	100,
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
}

// tierBoostWeights is the boost contribution in basis points of one held item per tier.
var tierBoostWeights = [MaxTier + 1]int64{0, 100, 200, 300, 400, 500, 1000, 1500, 2000, 2500}

// ValidTier reports whether tier is in the closed range [MinTier, MaxTier].
func ValidTier(tier int) bool {
	return tier >= MinTier && tier <= MaxTier
}

// RollTier maps a base roll to a tier. Rolls at or above BaseRollRange are treated as
// the most common tier.
func RollTier(baseRoll uint64) int {
	for i, threshold := range tierThresholds {
		if baseRoll < threshold {
			return MaxTier - i
		}
	}
	return MinTier
}

// TierBoostWeight returns the boost contribution of a single item of the given tier.
func TierBoostWeight(tier int) (int64, error) {
	if !ValidTier(tier) {
		return 0, ErrInvalidTier
	}
	return tierBoostWeights[tier], nil
}

// AggregateBoost sums the per-tier boost weights over the items held.
func AggregateBoost(items []*Item) (int64, error) {
	var boost int64
	for _, item := range items {
		w, err := TierBoostWeight(item.Tier)
		if err != nil {
			return 0, err
		}
		boost += w
	}
	return boost, nil
}

// ApplyUpgrade promotes baseTier by exactly one step when upgradeRoll falls below the
// aggregate boost. The rarest tier and a zero boost are never promoted.
func ApplyUpgrade(baseTier int, boost int64, upgradeRoll uint64) (int, bool, error) {
	if !ValidTier(baseTier) {
		return 0, false, ErrInvalidTier
	}
	if baseTier == MaxTier || boost <= 0 {
		return baseTier, false, nil
	}
	if upgradeRoll < uint64(boost) {
		return baseTier + 1, true, nil
	}
	return baseTier, false, nil
}
