package model

import (
	"time"

	"gorm.io/datatypes"
)

// CanonicalGame 规范游戏主表（同一款游戏多平台去重后一条）
// catalog_id 为空表示未经目录核验；唯一性由 repository.AutoMigrate 建立的部分唯一索引保证
type CanonicalGame struct {
	ID                uint64                      `gorm:"column:id;primaryKey;autoIncrement"`
	CatalogID         *int64                      `gorm:"column:catalog_id;type:bigint"`
	CanonicalName     string                      `gorm:"column:canonical_name;type:varchar(512);not null"`
	OriginalName      string                      `gorm:"column:original_name;type:varchar(512);not null"` // 首次出现时的平台标题
	NormalizedName    string                      `gorm:"column:normalized_name;type:varchar(512);not null;index"`
	SteamID           *string                     `gorm:"column:steam_id;type:varchar(64);index"`
	PSNID             *string                     `gorm:"column:psn_id;type:varchar(64);index"`
	Platforms         datatypes.JSONSlice[int64]  `gorm:"column:platforms"`
	Genres            datatypes.JSONSlice[int64]  `gorm:"column:genres"`
	GameModes         datatypes.JSONSlice[int64]  `gorm:"column:game_modes"`
	ReleaseDate       *time.Time                  `gorm:"column:release_date"`
	PublisherID       *int64                      `gorm:"column:publisher_id;type:bigint"`
	DeveloperID       *int64                      `gorm:"column:developer_id;type:bigint"`
	Description       string                      `gorm:"column:description;type:text"`
	CoverImage        string                      `gorm:"column:cover_image;type:varchar(512)"`
	Screenshots       datatypes.JSONSlice[string] `gorm:"column:screenshots"`
	TotalRating       float64                     `gorm:"column:total_rating;default:0"`
	TotalRatingCount  int                         `gorm:"column:total_rating_count;default:0"`
	NeedsVerification bool                        `gorm:"column:needs_verification;not null;default:false"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (CanonicalGame) TableName() string { return "canonical_games" }

// ExternalID 指定平台的外部ID，未知平台返回 nil
func (g *CanonicalGame) ExternalID(p PlatformType) *string {
	switch p {
	case PlatformSteam:
		return g.SteamID
	case PlatformPSN:
		return g.PSNID
	}
	return nil
}

// SetExternalID 写入指定平台的外部ID
func (g *CanonicalGame) SetExternalID(p PlatformType, id *string) {
	switch p {
	case PlatformSteam:
		g.SteamID = id
	case PlatformPSN:
		g.PSNID = id
	}
}

// ExternalIDColumn 平台对应的外部ID列名
func ExternalIDColumn(p PlatformType) string {
	switch p {
	case PlatformSteam:
		return "steam_id"
	case PlatformPSN:
		return "psn_id"
	}
	return ""
}

// ApplyMetadata 用目录元数据覆盖描述字段（不处理 normalized_name 与核验标记）
func (g *CanonicalGame) ApplyMetadata(meta *GameMetadata) {
	if meta == nil {
		return
	}
	id := meta.CatalogID
	g.CatalogID = &id
	if meta.Name != "" {
		g.CanonicalName = meta.Name
	}
	g.Platforms = datatypes.NewJSONSlice(meta.Platforms)
	g.Genres = datatypes.NewJSONSlice(meta.Genres)
	g.GameModes = datatypes.NewJSONSlice(meta.GameModes)
	g.ReleaseDate = meta.ReleaseDate
	g.PublisherID = meta.PublisherID
	g.DeveloperID = meta.DeveloperID
	g.Description = meta.Description
	g.CoverImage = meta.CoverImage
	g.Screenshots = datatypes.NewJSONSlice(meta.Screenshots)
	g.TotalRating = meta.TotalRating
	g.TotalRatingCount = meta.TotalRatingCount
}

// GameMetadata 目录返回的规范元数据
type GameMetadata struct {
	CatalogID        int64
	Name             string
	Platforms        []int64
	Genres           []int64
	GameModes        []int64
	ReleaseDate      *time.Time
	PublisherID      *int64
	DeveloperID      *int64
	Description      string
	CoverImage       string
	Screenshots      []string
	TotalRating      float64
	TotalRatingCount int
}
