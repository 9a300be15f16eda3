package session

import (
	"sort"

	"github.com/ichi0g0y/slot-roulette/internal/types"
)

// unknownUserName is shown for connected devices without a participant.
const unknownUserName = "unknown"

const unknownCategory = "Unknown"

// Leaderboard returns participants by cumulative profit, highest first.
func (e *Engine) Leaderboard() []types.Participant {
	return leaderboard(e.store.Snapshot())
}

// CategoryStats aggregates the history per category.
func (e *Engine) CategoryStats() []types.ProviderStat {
	return e.categoryStats(e.store.Snapshot())
}

// SyncView builds the full snapshot pushed to subscribers. connected lists
// the device ids of the current subscribers in registration order.
func (e *Engine) SyncView(connected []string) types.SyncView {
	s := e.store.Snapshot()
	return types.SyncView{
		Type:               "sync",
		Games:              s.Games,
		IsLocked:           s.IsLocked,
		Users:              leaderboard(s),
		ProviderStats:      e.categoryStats(s),
		ConnectedDevices:   connectedDevices(s, connected),
		DeviceLimit:        types.DeviceLimit,
		SubmittedDeviceIDs: s.SubmittedDeviceIDs(),
	}
}

// GamesView builds the one-shot view for a single device.
func (e *Engine) GamesView(deviceID string, connected []string) types.GamesView {
	s := e.store.Snapshot()
	return types.GamesView{
		Games:            s.Games,
		IsLocked:         s.IsLocked,
		DeviceLimit:      types.DeviceLimit,
		HasSubmitted:     s.HasSubmitted(deviceID),
		Users:            leaderboard(s),
		ProviderStats:    e.categoryStats(s),
		ConnectedDevices: connectedDevices(s, connected),
	}
}

// s は Snapshot のコピーなので並べ替えてそのまま返してよい
func leaderboard(s *types.SessionState) []types.Participant {
	users := s.Users
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].TotalProfit > users[j].TotalProfit
	})
	return users
}

func (e *Engine) categoryStats(s *types.SessionState) []types.ProviderStat {
	var order []string
	byName := make(map[string]*types.ProviderStat)
	add := func(name string) *types.ProviderStat {
		if st, ok := byName[name]; ok {
			return st
		}
		st := &types.ProviderStat{Provider: name}
		byName[name] = st
		order = append(order, name)
		return st
	}

	for _, c := range e.catalog.Categories() {
		add(c)
	}
	add(unknownCategory)

	for _, r := range s.History {
		provider := r.Provider
		if provider == "" {
			provider = e.catalog.Lookup(r.GameName)
		}
		st := add(provider)
		st.TotalProfit += r.Delta
		st.GamesPlayed++
		if r.Delta > st.BiggestWin {
			st.BiggestWin = r.Delta
		}
		if r.Delta < st.BiggestLoss {
			st.BiggestLoss = r.Delta
		}
	}

	stats := make([]types.ProviderStat, 0, len(order))
	for _, name := range order {
		if st := byName[name]; st.GamesPlayed > 0 {
			stats = append(stats, *st)
		}
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].TotalProfit > stats[j].TotalProfit
	})
	return stats
}

func connectedDevices(s *types.SessionState, connected []string) []types.ConnectedDevice {
	devices := []types.ConnectedDevice{}
	seen := make(map[string]struct{}, len(connected))
	for _, deviceID := range connected {
		if deviceID == "" {
			continue
		}
		if _, ok := seen[deviceID]; ok {
			continue
		}
		seen[deviceID] = struct{}{}

		name := unknownUserName
		if p := s.ParticipantByDevice(deviceID); p != nil {
			name = p.Name
		}
		devices = append(devices, types.ConnectedDevice{
			DeviceID:     deviceID,
			UserName:     name,
			HasSubmitted: s.HasSubmitted(deviceID),
		})
	}
	return devices
}
