package session

import (
	"context"
	"strings"

	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"github.com/ichi0g0y/slot-roulette/internal/types"
	"go.uber.org/zap"
)

// LockState is the response of SetLock.
type LockState struct {
	IsLocked  bool `json:"isLocked"`
	SpinCount int  `json:"spinCount"`
}

// EnqueueItem adds a game submitted from deviceID for participantID. A device
// may submit once per round.
func (e *Engine) EnqueueItem(ctx context.Context, name, deviceID, participantID string) (types.QueueItem, error) {
	name = strings.TrimSpace(name)
	deviceID = strings.TrimSpace(deviceID)
	participantID = strings.TrimSpace(participantID)
	if name == "" {
		return types.QueueItem{}, invalidInput("Game name is required.")
	}
	if deviceID == "" {
		return types.QueueItem{}, invalidInput("deviceId is required.")
	}
	if participantID == "" {
		return types.QueueItem{}, invalidInput("userId is required.")
	}

	var item types.QueueItem
	err := e.commit(ctx, OpItemEnqueued, func(s *types.SessionState) error {
		p := s.Participant(participantID)
		if p == nil {
			return notFound(CodeUserNotFound, "User not found.")
		}
		if s.HasSubmitted(deviceID) {
			return rateLimited("This device has already added a game.")
		}
		if err := checkQueueable(s, name, participantID); err != nil {
			return err
		}

		// 成功時のみデバイスを紐付ける
		s.BindDevice(p, deviceID)
		item = e.newItem(name, deviceID, participantID)
		s.Games = append(s.Games, item)
		s.SubmissionsByDevice[deviceID] = item.ID
		return nil
	}, func() any { return item })
	if err != nil {
		return types.QueueItem{}, err
	}

	logger.Info("Game added to queue",
		zap.String("game_id", item.ID),
		zap.String("name", item.Name),
		zap.String("provider", item.Provider),
		zap.String("device_id", deviceID))
	return item, nil
}

// EnqueueItemForParticipant adds a game on the operator's behalf. There is no
// device limit; the item carries the admin device marker.
func (e *Engine) EnqueueItemForParticipant(ctx context.Context, participantID, name string) (types.QueueItem, error) {
	name = strings.TrimSpace(name)
	participantID = strings.TrimSpace(participantID)
	if name == "" {
		return types.QueueItem{}, invalidInput("Game name is required.")
	}
	if participantID == "" {
		return types.QueueItem{}, invalidInput("userId is required.")
	}

	var item types.QueueItem
	err := e.commit(ctx, OpItemEnqueued, func(s *types.SessionState) error {
		if s.Participant(participantID) == nil {
			return notFound(CodeUserNotFound, "User not found.")
		}
		if err := checkQueueable(s, name, participantID); err != nil {
			return err
		}
		item = e.newItem(name, types.AdminDevicePrefix+participantID, participantID)
		s.Games = append(s.Games, item)
		return nil
	}, func() any { return item })
	if err != nil {
		return types.QueueItem{}, err
	}

	logger.Info("Game added by operator",
		zap.String("game_id", item.ID),
		zap.String("name", item.Name),
		zap.String("user_id", participantID))
	return item, nil
}

// RemoveItem removes one queued game and frees its device slot.
func (e *Engine) RemoveItem(ctx context.Context, itemID string) error {
	itemID = strings.TrimSpace(itemID)

	var removed types.QueueItem
	err := e.commit(ctx, OpItemRemoved, func(s *types.SessionState) error {
		idx := s.ItemIndex(itemID)
		if idx < 0 {
			return notFound("", "Game not found.")
		}
		removed = s.Games[idx]
		s.Games = append(s.Games[:idx], s.Games[idx+1:]...)
		for deviceID, gameID := range s.SubmissionsByDevice {
			if gameID == itemID {
				delete(s.SubmissionsByDevice, deviceID)
			}
		}
		return nil
	}, func() any { return removed })
	if err != nil {
		return err
	}

	logger.Info("Game removed from queue", zap.String("game_id", itemID), zap.String("name", removed.Name))
	return nil
}

// ClearQueue empties the queue and every device submission.
func (e *Engine) ClearQueue(ctx context.Context) error {
	err := e.commit(ctx, OpQueueCleared, func(s *types.SessionState) error {
		s.ClearRound()
		return nil
	}, nil)
	if err != nil {
		return err
	}
	logger.Info("Queue cleared")
	return nil
}

// SetLock sets the lock flag. Locking an unlocked wheel counts one spin.
func (e *Engine) SetLock(ctx context.Context, locked bool) (LockState, error) {
	var state LockState
	err := e.commit(ctx, OpLockChanged, func(s *types.SessionState) error {
		if locked && !s.IsLocked {
			s.SpinCount++
		}
		s.IsLocked = locked
		state = LockState{IsLocked: s.IsLocked, SpinCount: s.SpinCount}
		return nil
	}, func() any { return state })
	if err != nil {
		return LockState{}, err
	}

	logger.Info("Spin lock updated", zap.Bool("locked", state.IsLocked), zap.Int("spin_count", state.SpinCount))
	return state, nil
}

func checkQueueable(s *types.SessionState, name, participantID string) error {
	for _, g := range s.Games {
		if types.SameName(g.Name, name) {
			return conflict(CodeDuplicateName, "Game already exists.")
		}
	}
	for _, g := range s.Games {
		if g.UserID == participantID {
			return conflict(CodeUserSubmissionExists, "User already has a game in this round.")
		}
	}
	return nil
}

func (e *Engine) newItem(name, deviceID, participantID string) types.QueueItem {
	return types.QueueItem{
		ID:        e.store.GenerateID(),
		Name:      name,
		Provider:  e.catalog.Lookup(name),
		CreatedAt: e.store.Now(),
		DeviceID:  deviceID,
		UserID:    participantID,
	}
}
