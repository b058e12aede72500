package model

// ========== IGDB / Twitch 响应结构 ==========

// TwitchToken Twitch client_credentials 令牌响应
type TwitchToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"` // 秒
	TokenType   string `json:"token_type"`
}

// IGDBExternalGame external_games 交叉引用
type IGDBExternalGame struct {
	ID   int64  `json:"id"`
	Game int64  `json:"game"`
	UID  string `json:"uid"`
}

// IGDBGame games 查询结果（genres/platforms/game_modes 只取 ID）
type IGDBGame struct {
	ID                int64                 `json:"id"`
	Name              string                `json:"name"`
	Summary           string                `json:"summary"`
	Genres            []int64               `json:"genres"`
	Platforms         []int64               `json:"platforms"`
	GameModes         []int64               `json:"game_modes"`
	FirstReleaseDate  int64                 `json:"first_release_date"` // unix 秒
	InvolvedCompanies []IGDBInvolvedCompany `json:"involved_companies"`
	Cover             *IGDBImage            `json:"cover"`
	Screenshots       []IGDBImage           `json:"screenshots"`
	TotalRating       float64               `json:"total_rating"`
	TotalRatingCount  int                   `json:"total_rating_count"`
}

// IGDBInvolvedCompany 参与公司（company 为 ID）
type IGDBInvolvedCompany struct {
	Company   int64 `json:"company"`
	Developer bool  `json:"developer"`
	Publisher bool  `json:"publisher"`
}

// IGDBImage 封面/截图
type IGDBImage struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}
