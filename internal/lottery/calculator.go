package lottery

import "math"

const (
	defaultMinSpins      = 5
	defaultMaxSpins      = 20
	defaultCurveExponent = 1.8
)

// Thresholds はボーナス発動判定のしきい値
type Thresholds struct {
	MinSpins      int
	MaxSpins      int
	CurveExponent float64
}

// DefaultThresholds は 5 スピンから確率が上がり始め、20 スピンで確定する設定。
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSpins:      defaultMinSpins,
		MaxSpins:      defaultMaxSpins,
		CurveExponent: defaultCurveExponent,
	}
}

// SpinsSinceBonus は前回ボーナスからのスピン数を返す。負にはならない。
func SpinsSinceBonus(spinCount, lastBonusAt int) int {
	elapsed := spinCount - lastBonusAt
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Probability returns the chance that a bonus fires after elapsed spins.
// 0 below MinSpins (and exactly at it), 1 at or above MaxSpins, and
// t^CurveExponent in between where t runs linearly from 0 to 1.
func (th Thresholds) Probability(elapsed int) float64 {
	th = th.normalized()

	if elapsed < th.MinSpins {
		return 0
	}
	if elapsed >= th.MaxSpins {
		return 1
	}

	t := float64(elapsed-th.MinSpins) / float64(th.MaxSpins-th.MinSpins)
	return math.Pow(t, th.CurveExponent)
}

func (th Thresholds) normalized() Thresholds {
	d := DefaultThresholds()
	if th.MinSpins < 0 {
		th.MinSpins = 0
	}
	if th.MaxSpins <= th.MinSpins {
		th.MinSpins, th.MaxSpins = d.MinSpins, d.MaxSpins
	}
	// 指数が1未満だと凸にならないので既定値に戻す
	if th.CurveExponent < 1 {
		th.CurveExponent = d.CurveExponent
	}
	return th
}
