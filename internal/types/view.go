package types

// ProviderStat はカテゴリ（プロバイダー）ごとの集計
type ProviderStat struct {
	Provider    string  `json:"provider"`
	TotalProfit float64 `json:"totalProfit"`
	GamesPlayed int     `json:"gamesPlayed"`
	BiggestWin  float64 `json:"biggestWin"`
	BiggestLoss float64 `json:"biggestLoss"`
}

// ConnectedDevice は接続中デバイスの表示用情報
type ConnectedDevice struct {
	DeviceID     string `json:"deviceId"`
	UserName     string `json:"userName"`
	HasSubmitted bool   `json:"hasSubmitted"`
}

// SyncView is the full snapshot pushed to subscribers.
type SyncView struct {
	Type               string            `json:"type"`
	Games              []QueueItem       `json:"games"`
	IsLocked           bool              `json:"isLocked"`
	Users              []Participant     `json:"users"`
	ProviderStats      []ProviderStat    `json:"providerStats"`
	ConnectedDevices   []ConnectedDevice `json:"connectedDevices"`
	DeviceLimit        int               `json:"deviceLimit"`
	SubmittedDeviceIDs []string          `json:"submittedDeviceIds"`
	Reset              bool              `json:"reset,omitempty"`
}

// GamesView is the one-shot query response for a single device.
type GamesView struct {
	Games            []QueueItem       `json:"games"`
	IsLocked         bool              `json:"isLocked"`
	DeviceLimit      int               `json:"deviceLimit"`
	HasSubmitted     bool              `json:"hasSubmitted"`
	Users            []Participant     `json:"users"`
	ProviderStats    []ProviderStat    `json:"providerStats"`
	ConnectedDevices []ConnectedDevice `json:"connectedDevices"`
}
