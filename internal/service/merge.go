package service

import (
	"context"
	"errors"
	"fmt"

	"GameSync/internal/metrics"
	"GameSync/internal/model"
	"GameSync/internal/repository"
	"GameSync/internal/utils/namekey"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MergeOutcome 合并解析结果；SurvivorID 为操作后代表该游戏的行
type MergeOutcome struct {
	SurvivorID uint64
	Changed    bool // 目标行被更新或发生了合并
	Merged     bool
	LoserID    uint64
}

// MergeResolver 给已有行写入新键（外部ID、目录ID）；键已被另一行持有时在同一事务内合并两行
type MergeResolver struct {
	db     *gorm.DB
	games  repository.GameRepository
	owners repository.OwnershipRepository
	logger *logrus.Logger
}

func NewMergeResolver(db *gorm.DB, logger *logrus.Logger) *MergeResolver {
	return &MergeResolver{
		db:     db,
		games:  repository.NewGameRepository(db),
		owners: repository.NewOwnershipRepository(db),
		logger: logger,
	}
}

// BackfillExternalID 为 gameID 补写平台外部ID
func (m *MergeResolver) BackfillExternalID(ctx context.Context, gameID uint64, platform model.PlatformType, externalID string) (MergeOutcome, error) {
	out := MergeOutcome{SurvivorID: gameID}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		games := m.games.WithTx(tx)
		target, err := m.load(ctx, games, gameID)
		if err != nil {
			return err
		}
		if stored := target.ExternalID(platform); stored != nil {
			if *stored == externalID {
				return nil
			}
			return fmt.Errorf("%w: 游戏%d已有%s外部ID %s，拒绝覆盖为%s",
				ErrMergeInvariantViolation, gameID, platform, *stored, externalID)
		}

		all, err := games.ListByExternalID(ctx, platform, externalID)
		if err != nil {
			return fmt.Errorf("查询外部ID持有者失败: %w", err)
		}
		holders := excludeGame(all, gameID)
		switch len(holders) {
		case 0:
			id := externalID
			target.SetExternalID(platform, &id)
			if err := games.Update(ctx, target); err != nil {
				return fmt.Errorf("回填外部ID失败: %w", err)
			}
			out.Changed = true
			return nil
		case 1:
			return m.merge(ctx, tx, target, holders[0], &out)
		default:
			return fmt.Errorf("%w: %s外部ID %s 被%d行持有", ErrMergeInvariantViolation, platform, externalID, len(holders))
		}
	})
	return m.finish(out, err)
}

// AssignCatalogMetadata 为未核验行写入目录元数据；目录ID已被另一行持有时合并
func (m *MergeResolver) AssignCatalogMetadata(ctx context.Context, gameID uint64, meta *model.GameMetadata) (MergeOutcome, error) {
	out := MergeOutcome{SurvivorID: gameID}
	if meta == nil {
		return out, nil
	}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		games := m.games.WithTx(tx)
		target, err := m.load(ctx, games, gameID)
		if err != nil {
			return err
		}
		if target.CatalogID != nil {
			if *target.CatalogID == meta.CatalogID {
				return nil
			}
			return fmt.Errorf("%w: 游戏%d已关联目录%d，拒绝改为%d",
				ErrMergeInvariantViolation, gameID, *target.CatalogID, meta.CatalogID)
		}

		holder, err := games.FindByCatalogID(ctx, meta.CatalogID)
		if err != nil {
			return fmt.Errorf("查询目录ID持有者失败: %w", err)
		}
		if holder != nil && holder.ID != gameID {
			return m.merge(ctx, tx, target, holder, &out)
		}

		oldKey := target.NormalizedName
		target.ApplyMetadata(meta)
		if key := namekey.Normalize(meta.Name); key != "" {
			target.NormalizedName = key
		}
		if target.NormalizedName != oldKey {
			target.NeedsVerification = true
		}
		if err := games.Update(ctx, target); err != nil {
			return fmt.Errorf("写入目录元数据失败: %w", err)
		}
		out.Changed = true
		return nil
	})
	return m.finish(out, err)
}

// merge 把 a、b 合为一行：有目录ID的行优先保留，其次 created_at 更早、id 更小
func (m *MergeResolver) merge(ctx context.Context, tx *gorm.DB, a, b *model.CanonicalGame, out *MergeOutcome) error {
	if a.CatalogID != nil && b.CatalogID != nil && *a.CatalogID != *b.CatalogID {
		return fmt.Errorf("%w: 游戏%d与%d关联了不同的目录ID", ErrMergeInvariantViolation, a.ID, b.ID)
	}
	survivor, loser := pickSurvivor(a, b)
	games := m.games.WithTx(tx)
	owns := m.owners.WithTx(tx)

	loserOwns, err := owns.ListByGame(ctx, loser.ID)
	if err != nil {
		return fmt.Errorf("查询被合并游戏的拥有关系失败: %w", err)
	}
	for _, o := range loserOwns {
		sibling, err := owns.Get(ctx, survivor.ID, o.UserID, o.Platform)
		if err != nil {
			return fmt.Errorf("查询保留游戏的拥有关系失败: %w", err)
		}
		if sibling != nil {
			// 同一用户同一平台两行：取较大的统计
			if err := owns.UpdateStats(ctx, sibling.ID,
				max(sibling.ProgressCount, o.ProgressCount),
				max(sibling.PlayDuration, o.PlayDuration)); err != nil {
				return fmt.Errorf("合并拥有关系统计失败: %w", err)
			}
			if err := owns.Delete(ctx, o.ID); err != nil {
				return fmt.Errorf("删除重复拥有关系失败: %w", err)
			}
			continue
		}
		ok, err := owns.Repoint(ctx, o.ID, survivor.ID)
		if err != nil {
			return fmt.Errorf("改挂拥有关系失败: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: 拥有关系%d在合并过程中丢失", ErrMergeInvariantViolation, o.ID)
		}
	}

	// 先删除被合并行，再给保留行补键，避免部分唯一索引冲突
	if err := games.Delete(ctx, loser.ID); err != nil {
		return fmt.Errorf("删除被合并游戏失败: %w", err)
	}
	for _, p := range model.Platforms {
		if survivor.ExternalID(p) == nil && loser.ExternalID(p) != nil {
			survivor.SetExternalID(p, loser.ExternalID(p))
		}
	}
	survivor.NeedsVerification = survivor.NeedsVerification || loser.NeedsVerification
	if err := games.Update(ctx, survivor); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: 合并后的键与第三行冲突: %v", ErrMergeInvariantViolation, err)
		}
		return fmt.Errorf("更新保留游戏失败: %w", err)
	}

	out.SurvivorID = survivor.ID
	out.LoserID = loser.ID
	out.Changed = true
	out.Merged = true
	m.logger.WithFields(logrus.Fields{
		"survivor_id": survivor.ID,
		"loser_id":    loser.ID,
		"ownerships":  len(loserOwns),
	}).Info("规范游戏合并完成")
	return nil
}

func (m *MergeResolver) load(ctx context.Context, games repository.GameRepository, id uint64) (*model.CanonicalGame, error) {
	g, err := games.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("查询规范游戏%d失败: %w", id, err)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: 规范游戏%d不存在", ErrMergeInvariantViolation, id)
	}
	return g, nil
}

func (m *MergeResolver) finish(out MergeOutcome, err error) (MergeOutcome, error) {
	switch {
	case err == nil:
		if out.Merged {
			metrics.Merges.WithLabelValues("merged").Inc()
		}
		return out, nil
	case errors.Is(err, ErrMergeInvariantViolation):
		metrics.Merges.WithLabelValues("violation").Inc()
	}
	return MergeOutcome{SurvivorID: out.SurvivorID}, err
}

func pickSurvivor(a, b *model.CanonicalGame) (survivor, loser *model.CanonicalGame) {
	if (a.CatalogID != nil) != (b.CatalogID != nil) {
		if a.CatalogID != nil {
			return a, b
		}
		return b, a
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.Before(b.CreatedAt) {
			return a, b
		}
		return b, a
	}
	if a.ID < b.ID {
		return a, b
	}
	return b, a
}

func excludeGame(games []*model.CanonicalGame, id uint64) []*model.CanonicalGame {
	out := make([]*model.CanonicalGame, 0, len(games))
	for _, g := range games {
		if g.ID != id {
			out = append(out, g)
		}
	}
	return out
}
