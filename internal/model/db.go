package model

import (
	"time"
)

// Ownership 用户在某平台上对规范游戏的拥有与进度
type Ownership struct {
	ID            uint64       `gorm:"column:id;primaryKey;autoIncrement"`
	GameID        uint64       `gorm:"column:game_id;type:bigint;not null;uniqueIndex:uq_ownership_game_user_platform"`
	UserID        string       `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uq_ownership_game_user_platform;index"`
	Platform      PlatformType `gorm:"column:platform;type:varchar(16);not null;uniqueIndex:uq_ownership_game_user_platform"`
	ProgressCount int64        `gorm:"column:progress_count;default:0"`
	PlayDuration  int64        `gorm:"column:play_duration;default:0"`
	CreatedAt     time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (Ownership) TableName() string { return "game_ownerships" }

// JobCounters 单次同步的计数
type JobCounters struct {
	GamesInserted     int `gorm:"column:games_inserted;default:0" json:"games_inserted"`
	GamesUpdated      int `gorm:"column:games_updated;default:0" json:"games_updated"`
	OwnershipInserted int `gorm:"column:ownership_inserted;default:0" json:"ownership_inserted"`
	OwnershipUpdated  int `gorm:"column:ownership_updated;default:0" json:"ownership_updated"`
}

// SyncJob 一次同步任务；只由 JobTracker 修改，success/fail 为终态
type SyncJob struct {
	JobID       string       `gorm:"column:job_id;type:varchar(64);primaryKey" json:"job_id"`
	UserID      string       `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Platform    PlatformType `gorm:"column:platform;type:varchar(16);not null" json:"platform"`
	Status      JobStatus    `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Error       *string      `gorm:"column:error;type:text" json:"error"`
	JobCounters `gorm:"embedded"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (SyncJob) TableName() string { return "sync_jobs" }
