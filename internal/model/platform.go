package model

import (
	"time"
)

// RawPlatformRecord 采集器产出的单条原始记录（不落库，每次同步只消费一次）
// DisplayName 与 TitleName 至少有一个：PSN 的纯奖杯条目只有 title_name
type RawPlatformRecord struct {
	Platform      PlatformType `json:"platform" validate:"required,oneof=steam psn"`
	ExternalID    *string      `json:"external_id,omitempty" validate:"omitempty,min=1,max=64"`
	DisplayName   string       `json:"display_name,omitempty" validate:"required_without=TitleName,max=512"`
	TitleName     string       `json:"title_name,omitempty" validate:"max=512"`
	ProgressCount int64        `json:"progress_count" validate:"gte=0"` // 已获得成就/奖杯数
	PlayDuration  int64        `json:"play_duration" validate:"gte=0"`  // 游玩时长（秒）
}

// Name 平台提供的标题，display_name 优先
func (r *RawPlatformRecord) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.TitleName
}

// PlatformLink 用户与平台账号的绑定（账号层维护，同步只读取凭据并回写汇总）
type PlatformLink struct {
	ID                 uint64       `gorm:"column:id;primaryKey;autoIncrement"`
	UserID             string       `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uq_link_user_platform"`
	Platform           PlatformType `gorm:"column:platform;type:varchar(16);not null;uniqueIndex:uq_link_user_platform"`
	AccountID          string       `gorm:"column:account_id;type:varchar(128)"` // Steam ID / PSN 账号
	APIKey             string       `gorm:"column:api_key;type:varchar(512)"`    // Steam Web API Key / PSN 访问令牌
	GameCount          int          `gorm:"column:game_count;default:0"`
	EarnedAchievements int64        `gorm:"column:earned_achievements;default:0"`
	PlayDuration       int64        `gorm:"column:play_duration;default:0"`
	LastSyncedAt       *time.Time   `gorm:"column:last_synced_at"`
	CreatedAt          time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (PlatformLink) TableName() string { return "platform_links" }

// PlatformSummary 单次同步后回写到绑定上的平台汇总
type PlatformSummary struct {
	GameCount          int
	EarnedAchievements int64
	PlayDuration       int64
	SyncedAt           time.Time
}
