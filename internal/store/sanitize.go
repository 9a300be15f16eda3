package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ichi0g0y/slot-roulette/internal/types"
)

const (
	defaultParticipantName = "Spelare"
	defaultItemName        = "Okänt spel"
)

var errNotObject = errors.New("state document is not a JSON object")

// looseString は文字列以外の値を「無効」として受け入れる
type looseString struct {
	Value string
	Valid bool
}

func (s *looseString) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil || bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = looseString{}
		return nil
	}
	*s = looseString{Value: v, Valid: true}
	return nil
}

// looseNumber coerces numbers, numeric strings and booleans; anything else is 0.
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(b []byte) error {
	*n = 0

	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = looseNumber(finiteOrZero(f))
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*n = looseNumber(finiteOrZero(f))
		}
		return nil
	}

	var v bool
	if err := json.Unmarshal(b, &v); err == nil && v {
		*n = 1
	}
	return nil
}

type looseTime struct {
	Value time.Time
	Valid bool
}

func (t *looseTime) UnmarshalJSON(b []byte) error {
	*t = looseTime{}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	*t = looseTime{Value: parsed.UTC(), Valid: true}
	return nil
}

type rawItem struct {
	ID        looseString `json:"id"`
	Name      looseString `json:"name"`
	Provider  looseString `json:"provider"`
	CreatedAt looseTime   `json:"createdAt"`
	DeviceID  looseString `json:"deviceId"`
	UserID    looseString `json:"userId"`
}

type rawRound struct {
	ID        looseString `json:"id"`
	GameID    looseString `json:"gameId"`
	GameName  looseString `json:"gameName"`
	Provider  looseString `json:"provider"`
	UserID    looseString `json:"userId"`
	UserName  looseString `json:"userName"`
	Before    looseNumber `json:"before"`
	After     looseNumber `json:"after"`
	Delta     looseNumber `json:"delta"`
	CreatedAt looseTime   `json:"createdAt"`
}

type rawUser struct {
	ID          looseString     `json:"id"`
	Name        looseString     `json:"name"`
	DeviceIDs   json.RawMessage `json:"deviceIds"`
	TotalProfit looseNumber     `json:"totalProfit"`
	Rounds      json.RawMessage `json:"rounds"`
}

type rawState struct {
	Games               json.RawMessage `json:"games"`
	IsLocked            json.RawMessage `json:"isLocked"`
	SubmissionsByDevice json.RawMessage `json:"submissionsByDevice"`
	Users               json.RawMessage `json:"users"`
	History             json.RawMessage `json:"history"`
	SpinCount           json.RawMessage `json:"spinCount"`
	LastBonusAt         json.RawMessage `json:"lastBonusAt"`
}

// sanitizer は保存済みドキュメントを寛容に読み込み、欠けた値を補う。
type sanitizer struct {
	newID func() string
	now   time.Time
}

func (z sanitizer) decode(data []byte) (*types.SessionState, error) {
	if !isObject(data) {
		return nil, errNotObject
	}

	var raw rawState
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	s := types.NewSessionState()

	for _, elem := range objects(raw.Games) {
		var item rawItem
		if err := json.Unmarshal(elem, &item); err != nil {
			continue
		}
		s.Games = append(s.Games, z.item(item))
	}

	_ = json.Unmarshal(raw.IsLocked, &s.IsLocked)

	var submissions map[string]json.RawMessage
	if isObject(raw.SubmissionsByDevice) && json.Unmarshal(raw.SubmissionsByDevice, &submissions) == nil {
		for deviceID, value := range submissions {
			var itemID string
			if json.Unmarshal(value, &itemID) == nil && strings.TrimSpace(deviceID) != "" && itemID != "" {
				s.SubmissionsByDevice[deviceID] = itemID
			}
		}
	}

	for _, elem := range objects(raw.Users) {
		var user rawUser
		if err := json.Unmarshal(elem, &user); err != nil {
			continue
		}
		s.Users = append(s.Users, z.user(user))
	}

	s.History = z.rounds(raw.History)
	s.SpinCount = strictInt(raw.SpinCount)
	s.LastBonusAt = strictInt(raw.LastBonusAt)

	s.RebuildDeviceIndex()
	return s, nil
}

func (z sanitizer) item(r rawItem) types.QueueItem {
	name := defaultItemName
	if r.Name.Valid {
		name = strings.TrimSpace(r.Name.Value)
	}
	return types.QueueItem{
		ID:        z.idOr(r.ID),
		Name:      name,
		Provider:  r.Provider.Value,
		CreatedAt: z.timeOr(r.CreatedAt),
		DeviceID:  r.DeviceID.Value,
		UserID:    r.UserID.Value,
	}
}

func (z sanitizer) user(r rawUser) types.Participant {
	name := strings.TrimSpace(r.Name.Value)
	if name == "" {
		name = defaultParticipantName
	}

	var elems []json.RawMessage
	_ = json.Unmarshal(r.DeviceIDs, &elems)

	deviceIDs := []string{}
	for _, elem := range elems {
		var id string
		if json.Unmarshal(elem, &id) == nil && strings.TrimSpace(id) != "" {
			deviceIDs = append(deviceIDs, id)
		}
	}

	return types.Participant{
		ID:          z.idOr(r.ID),
		Name:        name,
		DeviceIDs:   deviceIDs,
		TotalProfit: float64(r.TotalProfit),
		Rounds:      z.rounds(r.Rounds),
	}
}

func (z sanitizer) rounds(data json.RawMessage) []types.RoundResult {
	rounds := []types.RoundResult{}
	for _, elem := range objects(data) {
		var r rawRound
		if err := json.Unmarshal(elem, &r); err != nil {
			continue
		}
		rounds = append(rounds, types.RoundResult{
			ID:        z.idOr(r.ID),
			GameID:    r.GameID.Value,
			GameName:  r.GameName.Value,
			Provider:  r.Provider.Value,
			UserID:    r.UserID.Value,
			UserName:  r.UserName.Value,
			Before:    float64(r.Before),
			After:     float64(r.After),
			Delta:     float64(r.Delta),
			CreatedAt: z.timeOr(r.CreatedAt),
		})
	}
	return rounds
}

func (z sanitizer) idOr(id looseString) string {
	if v := strings.TrimSpace(id.Value); v != "" {
		return v
	}
	return z.newID()
}

func (z sanitizer) timeOr(t looseTime) time.Time {
	if t.Valid {
		return t.Value
	}
	return z.now
}

// objects returns the elements of a JSON array that are objects.
func objects(data json.RawMessage) []json.RawMessage {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil
	}
	out := elems[:0]
	for _, e := range elems {
		if isObject(e) {
			out = append(out, e)
		}
	}
	return out
}

func isObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func strictInt(data json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return 0
	}
	f = finiteOrZero(f)
	return int(f)
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
