package types

import (
	"sort"
	"time"
)

// DeviceLimit は1ラウンドあたり1デバイスが投稿できるゲーム数
const DeviceLimit = 1

// AdminDevicePrefix は運営者が代理投稿したゲームに付く擬似デバイスID
const AdminDevicePrefix = "admin:"

// QueueItem は現在のラウンドに投稿されたゲーム
type QueueItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Provider  string    `json:"provider"` // 投稿時にカタログから解決したカテゴリ
	CreatedAt time.Time `json:"createdAt"`
	DeviceID  string    `json:"deviceId"`
	UserID    string    `json:"userId"`
}

// RoundResult はラウンドの結果。作成後は変更しない。
type RoundResult struct {
	ID        string    `json:"id"`
	GameID    string    `json:"gameId"`
	GameName  string    `json:"gameName"`
	Provider  string    `json:"provider"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Before    float64   `json:"before"`
	After     float64   `json:"after"`
	Delta     float64   `json:"delta"`
	CreatedAt time.Time `json:"createdAt"`
}

// Participant はラウンドをまたいで収支を追跡されるプレイヤー
type Participant struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	DeviceIDs   []string      `json:"deviceIds"`
	TotalProfit float64       `json:"totalProfit"`
	Rounds      []RoundResult `json:"rounds"`
}

// SessionState is the whole persisted session document.
type SessionState struct {
	Games               []QueueItem       `json:"games"`
	IsLocked            bool              `json:"isLocked"`
	SubmissionsByDevice map[string]string `json:"submissionsByDevice"`
	Users               []Participant     `json:"users"`
	History             []RoundResult     `json:"history"`
	SpinCount           int               `json:"spinCount"`
	LastBonusAt         int               `json:"lastBonusAt"`

	// deviceID -> participantID。永続化せず、ロード時とバインド時に更新する。
	deviceIndex map[string]string
}

// NewSessionState returns the default (empty) state.
func NewSessionState() *SessionState {
	return &SessionState{
		Games:               []QueueItem{},
		SubmissionsByDevice: map[string]string{},
		Users:               []Participant{},
		History:             []RoundResult{},
		deviceIndex:         map[string]string{},
	}
}

// Clone returns a deep copy that shares no mutable memory with s.
func (s *SessionState) Clone() *SessionState {
	c := &SessionState{
		Games:               append([]QueueItem{}, s.Games...),
		IsLocked:            s.IsLocked,
		SubmissionsByDevice: make(map[string]string, len(s.SubmissionsByDevice)),
		Users:               make([]Participant, len(s.Users)),
		History:             append([]RoundResult{}, s.History...),
		SpinCount:           s.SpinCount,
		LastBonusAt:         s.LastBonusAt,
		deviceIndex:         make(map[string]string, len(s.deviceIndex)),
	}
	for k, v := range s.SubmissionsByDevice {
		c.SubmissionsByDevice[k] = v
	}
	for i, u := range s.Users {
		u.DeviceIDs = append([]string{}, u.DeviceIDs...)
		u.Rounds = append([]RoundResult{}, u.Rounds...)
		c.Users[i] = u
	}
	for k, v := range s.deviceIndex {
		c.deviceIndex[k] = v
	}
	return c
}

// RebuildDeviceIndex recomputes the device index from participants.
// 複数の参加者に同じデバイスがある場合は先に登録された参加者を優先する。
func (s *SessionState) RebuildDeviceIndex() {
	s.deviceIndex = make(map[string]string)
	for _, u := range s.Users {
		for _, d := range u.DeviceIDs {
			if _, ok := s.deviceIndex[d]; !ok {
				s.deviceIndex[d] = u.ID
			}
		}
	}
}

// Participant returns a pointer into Users, or nil.
func (s *SessionState) Participant(id string) *Participant {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return &s.Users[i]
		}
	}
	return nil
}

// ParticipantByDevice resolves the participant bound to deviceID through the index.
func (s *SessionState) ParticipantByDevice(deviceID string) *Participant {
	if deviceID == "" {
		return nil
	}
	if s.deviceIndex == nil {
		s.RebuildDeviceIndex()
	}
	id, ok := s.deviceIndex[deviceID]
	if !ok {
		return nil
	}
	return s.Participant(id)
}

// BindDevice binds deviceID to participant p and updates the index.
func (s *SessionState) BindDevice(p *Participant, deviceID string) {
	if p == nil || deviceID == "" {
		return
	}
	if !containsString(p.DeviceIDs, deviceID) {
		p.DeviceIDs = append(p.DeviceIDs, deviceID)
	}
	if s.deviceIndex == nil {
		s.RebuildDeviceIndex()
	}
	// RebuildDeviceIndex と同じく Users の並び順で先の参加者を優先する
	if cur, ok := s.deviceIndex[deviceID]; !ok || s.userPosition(p.ID) < s.userPosition(cur) {
		s.deviceIndex[deviceID] = p.ID
	}
}

func (s *SessionState) userPosition(id string) int {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return i
		}
	}
	return len(s.Users)
}

// ItemIndex returns the position of the queue item or -1.
func (s *SessionState) ItemIndex(id string) int {
	for i := range s.Games {
		if s.Games[i].ID == id {
			return i
		}
	}
	return -1
}

// HasSubmitted reports whether deviceID already has an entry this round.
func (s *SessionState) HasSubmitted(deviceID string) bool {
	if deviceID == "" {
		return false
	}
	_, ok := s.SubmissionsByDevice[deviceID]
	return ok
}

// SubmittedDeviceIDs returns the device ids with a submission, sorted.
func (s *SessionState) SubmittedDeviceIDs() []string {
	ids := make([]string, 0, len(s.SubmissionsByDevice))
	for id := range s.SubmissionsByDevice {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClearRound empties the queue and the submission map.
func (s *SessionState) ClearRound() {
	s.Games = []QueueItem{}
	s.SubmissionsByDevice = map[string]string{}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
