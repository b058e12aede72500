package repository

import (
	"context"

	"GameSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OwnershipRepository 用户拥有关系仓储
type OwnershipRepository interface {
	Get(ctx context.Context, gameID uint64, userID string, platform model.PlatformType) (*model.Ownership, error)
	// Upsert 按 (game_id, user_id, platform) 插入或覆盖统计
	Upsert(ctx context.Context, o *model.Ownership) error
	UpdateStats(ctx context.Context, id uint64, progress, duration int64) error
	ListByGame(ctx context.Context, gameID uint64) ([]*model.Ownership, error)
	ListByUser(ctx context.Context, userID string, platform model.PlatformType) ([]*model.Ownership, error)
	// Repoint 把拥有关系改挂到另一款游戏，返回是否命中
	Repoint(ctx context.Context, id, newGameID uint64) (bool, error)
	Delete(ctx context.Context, id uint64) error
	WithTx(tx *gorm.DB) OwnershipRepository
}

type ownershipRepository struct {
	db *gorm.DB
}

func NewOwnershipRepository(db *gorm.DB) OwnershipRepository {
	return &ownershipRepository{db: db}
}

func (r *ownershipRepository) WithTx(tx *gorm.DB) OwnershipRepository {
	return &ownershipRepository{db: tx}
}

func (r *ownershipRepository) Get(ctx context.Context, gameID uint64, userID string, platform model.PlatformType) (*model.Ownership, error) {
	var o model.Ownership
	return firstOrNil(r.db.WithContext(ctx).
		Where("game_id = ? AND user_id = ? AND platform = ?", gameID, userID, platform), &o)
}

func (r *ownershipRepository) Upsert(ctx context.Context, o *model.Ownership) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{"progress_count", "play_duration", "updated_at"}),
	}).Create(o).Error
}

func (r *ownershipRepository) UpdateStats(ctx context.Context, id uint64, progress, duration int64) error {
	return r.db.WithContext(ctx).Model(&model.Ownership{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress_count": progress,
			"play_duration":  duration,
		}).Error
}

func (r *ownershipRepository) ListByGame(ctx context.Context, gameID uint64) ([]*model.Ownership, error) {
	var list []*model.Ownership
	if err := r.db.WithContext(ctx).Where("game_id = ?", gameID).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *ownershipRepository) ListByUser(ctx context.Context, userID string, platform model.PlatformType) ([]*model.Ownership, error) {
	var list []*model.Ownership
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID, platform).
		Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *ownershipRepository) Repoint(ctx context.Context, id, newGameID uint64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Ownership{}).Where("id = ?", id).Update("game_id", newGameID)
	return res.RowsAffected > 0, res.Error
}

func (r *ownershipRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Ownership{}).Error
}
