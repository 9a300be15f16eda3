package lottery

import "testing"

// fixRandom は drawRandomInt を固定値に差し替え、テスト終了時に戻す。
func fixRandom(t *testing.T, value int) {
	t.Helper()

	original := drawRandomInt
	drawRandomInt = func(max int) (int, error) {
		if value >= max {
			return max - 1, nil
		}
		return value, nil
	}
	t.Cleanup(func() {
		drawRandomInt = original
	})
}
