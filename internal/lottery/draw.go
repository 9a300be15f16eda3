package lottery

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
)

var errInvalidWeightTotal = errors.New("invalid total weight")

// probabilityResolution は確率判定に使う乱数の分解能
const probabilityResolution = 1_000_000

// RewardTier はボーナス金額と重み（百分率）
type RewardTier struct {
	Amount int `json:"amount"`
	Weight int `json:"weight"`
}

// DefaultRewardTiers は 200 (35%), 400 (35%), 600 (20%), 800 (10%)。
func DefaultRewardTiers() []RewardTier {
	return []RewardTier{
		{Amount: 200, Weight: 35},
		{Amount: 400, Weight: 35},
		{Amount: 600, Weight: 20},
		{Amount: 800, Weight: 10},
	}
}

// BonusCheck is the eligibility result reported to clients.
type BonusCheck struct {
	ShouldTrigger   bool `json:"shouldTrigger"`
	SpinsSinceBonus int  `json:"spinsSinceBonus"`
	TotalSpins      int  `json:"totalSpins"`
}

// Policy combines eligibility thresholds and reward tiers. It holds no
// session state; every call depends only on its arguments and the RNG.
type Policy struct {
	Thresholds Thresholds
	Tiers      []RewardTier
}

func DefaultPolicy() Policy {
	return Policy{
		Thresholds: DefaultThresholds(),
		Tiers:      DefaultRewardTiers(),
	}
}

var drawRandomInt = secureRandomInt

// Check decides whether a bonus should fire for the given counters.
func (p Policy) Check(spinCount, lastBonusAt int) (BonusCheck, error) {
	elapsed := SpinsSinceBonus(spinCount, lastBonusAt)
	result := BonusCheck{
		SpinsSinceBonus: elapsed,
		TotalSpins:      spinCount,
	}

	probability := p.Thresholds.Probability(elapsed)
	switch {
	case probability <= 0:
		return result, nil
	case probability >= 1:
		result.ShouldTrigger = true
		return result, nil
	}

	picked, err := drawRandomInt(probabilityResolution)
	if err != nil {
		return result, fmt.Errorf("failed to draw bonus chance: %w", err)
	}
	result.ShouldTrigger = float64(picked) < probability*probabilityResolution
	return result, nil
}

// DrawRewardAmount picks an amount with cumulative-weight selection.
func (p Policy) DrawRewardAmount() (int, error) {
	tiers := p.Tiers
	if len(tiers) == 0 {
		tiers = DefaultRewardTiers()
	}

	cumulative := make([]int, 0, len(tiers))
	total := 0
	for _, tier := range tiers {
		if tier.Weight <= 0 {
			cumulative = append(cumulative, total)
			continue
		}
		total += tier.Weight
		cumulative = append(cumulative, total)
	}
	if total <= 0 {
		return 0, errInvalidWeightTotal
	}

	picked, err := drawRandomInt(total)
	if err != nil {
		return 0, fmt.Errorf("failed to pick reward tier: %w", err)
	}

	target := picked + 1 // 1-based
	idx := sort.Search(len(cumulative), func(i int) bool {
		return cumulative[i] >= target
	})
	if idx >= len(tiers) {
		return 0, errInvalidWeightTotal
	}
	return tiers[idx].Amount, nil
}

func secureRandomInt(max int) (int, error) {
	if max <= 0 {
		return 0, errInvalidWeightTotal
	}

	n, err := crand.Int(crand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
