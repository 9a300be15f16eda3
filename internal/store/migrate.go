package store

import "github.com/ichi0g0y/slot-roulette/internal/types"

// backfillCategories はカテゴリ未設定のレコードをカタログから補完する。
// 何か変更した場合は true を返す。
func backfillCategories(s *types.SessionState, c Catalog) bool {
	changed := false

	for i := range s.History {
		if s.History[i].Provider == "" {
			s.History[i].Provider = c.Lookup(s.History[i].GameName)
			changed = true
		}
	}

	for i := range s.Users {
		rounds := s.Users[i].Rounds
		for j := range rounds {
			if rounds[j].Provider == "" {
				rounds[j].Provider = c.Lookup(rounds[j].GameName)
				changed = true
			}
		}
	}

	for i := range s.Games {
		if s.Games[i].Provider == "" {
			s.Games[i].Provider = c.Lookup(s.Games[i].Name)
			changed = true
		}
	}

	return changed
}
