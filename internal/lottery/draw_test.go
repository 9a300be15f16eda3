package lottery

import (
	"errors"
	"testing"
)

func TestCheck_BelowMinimumNeverTriggers(t *testing.T) {
	fixRandom(t, 0)

	result, err := DefaultPolicy().Check(4, 0)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if result.ShouldTrigger {
		t.Fatalf("should not trigger below minimum")
	}
	if result.SpinsSinceBonus != 4 || result.TotalSpins != 4 {
		t.Fatalf("unexpected counters: %+v", result)
	}
}

func TestCheck_AtMaximumAlwaysTriggers(t *testing.T) {
	original := drawRandomInt
	drawRandomInt = func(max int) (int, error) {
		return 0, errors.New("rng should not be used")
	}
	defer func() {
		drawRandomInt = original
	}()

	result, err := DefaultPolicy().Check(45, 25)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !result.ShouldTrigger {
		t.Fatalf("should always trigger at maximum")
	}
	if result.SpinsSinceBonus != 20 {
		t.Fatalf("unexpected spinsSinceBonus: got=%d want=20", result.SpinsSinceBonus)
	}
}

func TestCheck_BetweenUsesProbability(t *testing.T) {
	// elapsed=10 の確率は約 0.138
	tests := []struct {
		name   string
		picked int
		want   bool
	}{
		{name: "low draw triggers", picked: 0, want: true},
		{name: "just below", picked: 137_000, want: true},
		{name: "above", picked: 139_000, want: false},
		{name: "high draw misses", picked: 999_999, want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			fixRandom(t, tc.picked)

			result, err := DefaultPolicy().Check(10, 0)
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if result.ShouldTrigger != tc.want {
				t.Fatalf("ShouldTrigger = %v, want %v", result.ShouldTrigger, tc.want)
			}
		})
	}
}

func TestDrawRewardAmount_TierBoundaries(t *testing.T) {
	tests := []struct {
		picked int
		want   int
	}{
		{picked: 0, want: 200},
		{picked: 34, want: 200},
		{picked: 35, want: 400},
		{picked: 69, want: 400},
		{picked: 70, want: 600},
		{picked: 89, want: 600},
		{picked: 90, want: 800},
		{picked: 99, want: 800},
	}

	for _, tc := range tests {
		fixRandom(t, tc.picked)

		got, err := DefaultPolicy().DrawRewardAmount()
		if err != nil {
			t.Fatalf("DrawRewardAmount failed: %v", err)
		}
		if got != tc.want {
			t.Fatalf("DrawRewardAmount(picked=%d) = %d, want %d", tc.picked, got, tc.want)
		}
	}
}

func TestDrawRewardAmount_SkipsZeroWeight(t *testing.T) {
	fixRandom(t, 0)

	policy := Policy{Tiers: []RewardTier{
		{Amount: 100, Weight: 0},
		{Amount: 500, Weight: 1},
	}}
	got, err := policy.DrawRewardAmount()
	if err != nil {
		t.Fatalf("DrawRewardAmount failed: %v", err)
	}
	if got != 500 {
		t.Fatalf("unexpected amount: got=%d want=500", got)
	}
}

func TestDrawRewardAmount_InvalidWeights(t *testing.T) {
	policy := Policy{Tiers: []RewardTier{{Amount: 100, Weight: 0}}}
	if _, err := policy.DrawRewardAmount(); !errors.Is(err, errInvalidWeightTotal) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDrawRewardAmount_SecureRandomStaysInSet(t *testing.T) {
	valid := map[int]bool{200: true, 400: true, 600: true, 800: true}
	for i := 0; i < 200; i++ {
		got, err := DefaultPolicy().DrawRewardAmount()
		if err != nil {
			t.Fatalf("DrawRewardAmount failed: %v", err)
		}
		if !valid[got] {
			t.Fatalf("unexpected amount: %d", got)
		}
	}
}

func BenchmarkDrawRewardAmount(b *testing.B) {
	policy := DefaultPolicy()
	for i := 0; i < b.N; i++ {
		if _, err := policy.DrawRewardAmount(); err != nil {
			b.Fatal(err)
		}
	}
}
