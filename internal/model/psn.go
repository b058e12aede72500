package model

// ========== PSN 移动端 API 响应结构 ==========

// PSNGameListResponse gamelist/v2/users/me/titles 的根响应
type PSNGameListResponse struct {
	Titles         []PSNTitle `json:"titles"`
	NextOffset     int        `json:"nextOffset"`
	TotalItemCount int        `json:"totalItemCount"`
}

// PSNTitle 单条游玩记录
type PSNTitle struct {
	TitleID      string `json:"titleId"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	PlayCount    int64  `json:"playCount"`
	PlayDuration string `json:"playDuration"` // ISO-8601，如 PT12H3M5S
}

// PSNTrophyTitlesResponse trophy/v1/users/me/trophyTitles 的根响应
type PSNTrophyTitlesResponse struct {
	TrophyTitles   []PSNTrophyTitle `json:"trophyTitles"`
	NextOffset     int              `json:"nextOffset"`
	TotalItemCount int              `json:"totalItemCount"`
}

// PSNTrophyTitle 单条奖杯列表
type PSNTrophyTitle struct {
	NPCommunicationID string            `json:"npCommunicationId"`
	TrophyTitleName   string            `json:"trophyTitleName"`
	EarnedTrophies    PSNTrophyCounters `json:"earnedTrophies"`
}

// PSNTrophyCounters 各等级奖杯数
type PSNTrophyCounters struct {
	Bronze   int64 `json:"bronze"`
	Silver   int64 `json:"silver"`
	Gold     int64 `json:"gold"`
	Platinum int64 `json:"platinum"`
}

// Total 奖杯总数
func (c PSNTrophyCounters) Total() int64 {
	return c.Bronze + c.Silver + c.Gold + c.Platinum
}
