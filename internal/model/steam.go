package model

// ========== Steam Web API 响应结构 ==========

// SteamOwnedGamesResponse IPlayerService/GetOwnedGames 的根响应
type SteamOwnedGamesResponse struct {
	Response struct {
		GameCount int              `json:"game_count"`
		Games     []SteamOwnedGame `json:"games"`
	} `json:"response"`
}

// SteamOwnedGame 单条已拥有游戏
type SteamOwnedGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int64  `json:"playtime_forever"` // 分钟
}

// SteamPlayerAchievementsResponse ISteamUserStats/GetPlayerAchievements 的根响应
type SteamPlayerAchievementsResponse struct {
	PlayerStats struct {
		GameName     string             `json:"gameName"`
		Achievements []SteamAchievement `json:"achievements"`
		Success      bool               `json:"success"`
		Error        string             `json:"error"`
	} `json:"playerstats"`
}

// SteamAchievement 单个成就
type SteamAchievement struct {
	APIName  string `json:"apiname"`
	Achieved int    `json:"achieved"` // 1 已解锁
}

// SteamPlayerSummariesResponse ISteamUser/GetPlayerSummaries 的根响应（用于确认账号存在）
type SteamPlayerSummariesResponse struct {
	Response struct {
		Players []struct {
			SteamID     string `json:"steamid"`
			PersonaName string `json:"personaname"`
		} `json:"players"`
	} `json:"response"`
}
