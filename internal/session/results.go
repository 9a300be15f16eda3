package session

import (
	"context"
	"math"
	"strings"

	"github.com/ichi0g0y/slot-roulette/internal/lottery"
	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"github.com/ichi0g0y/slot-roulette/internal/types"
	"go.uber.org/zap"
)

// RoundOutcome is returned by RecordResult.
type RoundOutcome struct {
	Result types.RoundResult   `json:"result"`
	Users  []types.Participant `json:"users"`
}

// RecordResult resolves a queued game and ends the round. The whole queue is
// cleared, not only the resolved item.
func (e *Engine) RecordResult(ctx context.Context, itemID string, before, after float64) (RoundOutcome, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return RoundOutcome{}, invalidInput("gameId is required.")
	}
	if !isFinite(before) || !isFinite(after) {
		return RoundOutcome{}, invalidInput("before and after must be numbers.")
	}

	var record types.RoundResult
	err := e.commit(ctx, OpResultRecorded, func(s *types.SessionState) error {
		idx := s.ItemIndex(itemID)
		if idx < 0 {
			return notFound("", "Game not found.")
		}
		game := s.Games[idx]

		p := s.Participant(game.UserID)
		if p == nil {
			return notFound(CodeUserNotFound, "User not found for game.")
		}

		provider := game.Provider
		if provider == "" {
			provider = e.catalog.Lookup(game.Name)
		}

		delta := after - before
		record = types.RoundResult{
			ID:        e.store.GenerateID(),
			GameID:    game.ID,
			GameName:  game.Name,
			Provider:  provider,
			UserID:    p.ID,
			UserName:  p.Name,
			Before:    before,
			After:     after,
			Delta:     delta,
			CreatedAt: e.store.Now(),
		}
		if !isFinite(p.TotalProfit + delta) {
			return invalidInput("before and after must be numbers.")
		}

		p.TotalProfit += delta
		p.Rounds = append(p.Rounds, record)
		s.History = append(s.History, record)
		s.ClearRound()
		return nil
	}, func() any { return record })
	if err != nil {
		return RoundOutcome{}, err
	}

	logger.Info("Round result recorded",
		zap.String("game_id", record.GameID),
		zap.String("user_id", record.UserID),
		zap.Float64("delta", record.Delta))
	return RoundOutcome{Result: record, Users: e.Leaderboard()}, nil
}

// ResetSession restores the default state. Participants and history are
// discarded; subscribers receive a reset signal.
func (e *Engine) ResetSession(ctx context.Context) error {
	err := e.commit(ctx, OpSessionReset, func(s *types.SessionState) error {
		*s = *types.NewSessionState()
		return nil
	}, nil)
	if err != nil {
		return err
	}
	logger.Info("System reset completed")
	return nil
}

// CheckBonus reports whether a bonus should fire now. It does not change state.
func (e *Engine) CheckBonus(ctx context.Context) lottery.BonusCheck {
	var spinCount, lastBonusAt int
	e.store.Read(func(s *types.SessionState) {
		spinCount, lastBonusAt = s.SpinCount, s.LastBonusAt
	})

	check, err := e.policy.Check(spinCount, lastBonusAt)
	if err != nil {
		logger.Warn("Failed to draw bonus chance, not triggering", zap.Error(err))
	}
	return check
}

// BonusDraw is the response of DrawBonus.
type BonusDraw struct {
	Amount int `json:"amount"`
}

// DrawBonus draws a reward amount and marks the current spin as the last
// bonus. It always returns an amount.
func (e *Engine) DrawBonus(ctx context.Context) (BonusDraw, error) {
	amount, err := e.policy.DrawRewardAmount()
	if err != nil {
		amount = e.lowestReward()
		logger.Warn("Failed to draw reward amount, using lowest tier", zap.Int("amount", amount), zap.Error(err))
	}

	draw := BonusDraw{Amount: amount}
	err = e.commit(ctx, OpBonusDrawn, func(s *types.SessionState) error {
		s.LastBonusAt = s.SpinCount
		return nil
	}, func() any { return draw })
	if err != nil {
		return BonusDraw{}, err
	}

	logger.Info("Bonus drawn", zap.Int("amount", amount))
	return draw, nil
}

// History returns every recorded round in order.
func (e *Engine) History() []types.RoundResult {
	var history []types.RoundResult
	e.store.Read(func(s *types.SessionState) {
		history = append([]types.RoundResult{}, s.History...)
	})
	return history
}

func (e *Engine) lowestReward() int {
	tiers := e.policy.Tiers
	if len(tiers) == 0 {
		tiers = lottery.DefaultRewardTiers()
	}
	lowest := tiers[0].Amount
	for _, t := range tiers[1:] {
		if t.Amount < lowest {
			lowest = t.Amount
		}
	}
	return lowest
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
