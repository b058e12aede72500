package service

import (
	"context"
	"fmt"

	"GameSync/internal/model"
	"GameSync/internal/repository"

	"gorm.io/gorm"
)

// OwnershipUpserter 写入用户对规范游戏的拥有关系；统计以最后一次写入为准
type OwnershipUpserter struct {
	repo repository.OwnershipRepository
}

func NewOwnershipUpserter(db *gorm.DB) *OwnershipUpserter {
	return &OwnershipUpserter{repo: repository.NewOwnershipRepository(db)}
}

// Upsert 返回是否为新插入
func (u *OwnershipUpserter) Upsert(ctx context.Context, gameID uint64, userID string, platform model.PlatformType, progress, duration int64) (bool, error) {
	if gameID == 0 {
		return false, ErrNilGameID
	}
	existing, err := u.repo.Get(ctx, gameID, userID, platform)
	if err != nil {
		return false, fmt.Errorf("查询拥有关系失败: %w", err)
	}
	if existing != nil {
		if err := u.repo.UpdateStats(ctx, existing.ID, progress, duration); err != nil {
			return false, fmt.Errorf("更新拥有关系失败: %w", err)
		}
		return false, nil
	}
	// 并发插入同一键时 Upsert 退化为覆盖统计
	if err := u.repo.Upsert(ctx, &model.Ownership{
		GameID:        gameID,
		UserID:        userID,
		Platform:      platform,
		ProgressCount: progress,
		PlayDuration:  duration,
	}); err != nil {
		return false, fmt.Errorf("插入拥有关系失败: %w", err)
	}
	return true, nil
}
