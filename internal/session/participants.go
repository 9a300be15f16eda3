package session

import (
	"context"
	"strings"

	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"github.com/ichi0g0y/slot-roulette/internal/types"
	"go.uber.org/zap"
)

// ParticipantResult is returned by the participant operations.
type ParticipantResult struct {
	User  types.Participant   `json:"user"`
	Users []types.Participant `json:"users"`
}

// RegisterParticipant creates a participant bound to deviceID, or renames
// the participant that already owns the device.
func (e *Engine) RegisterParticipant(ctx context.Context, name, deviceID string) (ParticipantResult, error) {
	name = strings.TrimSpace(name)
	deviceID = strings.TrimSpace(deviceID)
	if name == "" {
		return ParticipantResult{}, invalidInput("Name is required.")
	}
	if deviceID == "" {
		return ParticipantResult{}, invalidInput("deviceId is required.")
	}

	var (
		user    types.Participant
		created bool
	)
	err := e.commit(ctx, OpParticipantRegistered, func(s *types.SessionState) error {
		p := s.ParticipantByDevice(deviceID)
		if p == nil {
			s.Users = append(s.Users, types.Participant{
				ID:        e.store.GenerateID(),
				Name:      name,
				DeviceIDs: []string{},
				Rounds:    []types.RoundResult{},
			})
			p = &s.Users[len(s.Users)-1]
			created = true
		} else {
			p.Name = name
		}
		s.BindDevice(p, deviceID)
		user = copyParticipant(*p)
		return nil
	}, func() any { return user })
	if err != nil {
		return ParticipantResult{}, err
	}

	logger.Info("Participant registered",
		zap.String("user_id", user.ID),
		zap.String("device_id", deviceID),
		zap.Bool("created", created))
	return ParticipantResult{User: user, Users: e.Leaderboard()}, nil
}

// CreateParticipant creates a participant with no device on the operator's
// behalf. Names are unique case-insensitively.
func (e *Engine) CreateParticipant(ctx context.Context, name string) (ParticipantResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ParticipantResult{}, invalidInput("Name is required.")
	}

	var user types.Participant
	err := e.commit(ctx, OpParticipantCreated, func(s *types.SessionState) error {
		for _, u := range s.Users {
			if types.SameName(u.Name, name) {
				return conflict(CodeDuplicateName, "A user with that name already exists.")
			}
		}
		user = types.Participant{
			ID:        e.store.GenerateID(),
			Name:      name,
			DeviceIDs: []string{},
			Rounds:    []types.RoundResult{},
		}
		s.Users = append(s.Users, user)
		return nil
	}, func() any { return user })
	if err != nil {
		return ParticipantResult{}, err
	}

	logger.Info("Participant created by operator", zap.String("user_id", user.ID), zap.String("name", user.Name))
	return ParticipantResult{User: user, Users: e.Leaderboard()}, nil
}

func copyParticipant(p types.Participant) types.Participant {
	p.DeviceIDs = append([]string{}, p.DeviceIDs...)
	p.Rounds = append([]types.RoundResult{}, p.Rounds...)
	return p
}
