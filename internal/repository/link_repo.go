package repository

import (
	"context"

	"GameSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkRepository 用户平台绑定仓储（绑定本身由账号层维护，这里只读凭据并回写汇总）
type LinkRepository interface {
	Get(ctx context.Context, userID string, platform model.PlatformType) (*model.PlatformLink, error)
	UpdateSummary(ctx context.Context, id uint64, summary model.PlatformSummary) error
	// Save 按 (user_id, platform) 写入绑定，命令行和测试数据准备使用
	Save(ctx context.Context, link *model.PlatformLink) error
}

type linkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Get(ctx context.Context, userID string, platform model.PlatformType) (*model.PlatformLink, error) {
	var link model.PlatformLink
	return firstOrNil(r.db.WithContext(ctx).Where("user_id = ? AND platform = ?", userID, platform), &link)
}

func (r *linkRepository) UpdateSummary(ctx context.Context, id uint64, summary model.PlatformSummary) error {
	syncedAt := summary.SyncedAt
	return r.db.WithContext(ctx).Model(&model.PlatformLink{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"game_count":          summary.GameCount,
			"earned_achievements": summary.EarnedAchievements,
			"play_duration":       summary.PlayDuration,
			"last_synced_at":      &syncedAt,
		}).Error
}

func (r *linkRepository) Save(ctx context.Context, link *model.PlatformLink) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_id", "api_key", "updated_at"}),
	}).Create(link).Error
}
