package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"GameSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GameRepository 规范游戏仓储
type GameRepository interface {
	// Snapshot 匹配用的轻量快照（只取匹配相关列）
	Snapshot(ctx context.Context) ([]*model.CanonicalGame, error)
	GetByID(ctx context.Context, id uint64) (*model.CanonicalGame, error)
	ListByIDs(ctx context.Context, ids []uint64) ([]*model.CanonicalGame, error)
	FindByCatalogID(ctx context.Context, catalogID int64) (*model.CanonicalGame, error)
	// FindUnverified 按 (normalized_name, 外部ID) 查未核验行；externalID 为 nil 时匹配本平台外部ID为空的行，所有外部ID都为空的行优先
	FindUnverified(ctx context.Context, key string, platform model.PlatformType, externalID *string) (*model.CanonicalGame, error)
	ListByExternalID(ctx context.Context, platform model.PlatformType, externalID string) ([]*model.CanonicalGame, error)
	// CreateBatch 单事务批量插入，任一行冲突则整体回滚
	CreateBatch(ctx context.Context, games []*model.CanonicalGame) error
	// CreateIgnoreConflict 冲突时不插入，返回是否插入成功
	CreateIgnoreConflict(ctx context.Context, game *model.CanonicalGame) (bool, error)
	// MarkNeedsVerification 置核验标记，返回是否有行发生变化
	MarkNeedsVerification(ctx context.Context, id uint64) (bool, error)
	Update(ctx context.Context, game *model.CanonicalGame) error
	Delete(ctx context.Context, id uint64) error
	WithTx(tx *gorm.DB) GameRepository
}

type gameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepository{db: db}
}

func (r *gameRepository) WithTx(tx *gorm.DB) GameRepository {
	return &gameRepository{db: tx}
}

func (r *gameRepository) Snapshot(ctx context.Context) ([]*model.CanonicalGame, error) {
	var games []*model.CanonicalGame
	err := r.db.WithContext(ctx).
		Select("id", "catalog_id", "canonical_name", "original_name", "normalized_name", "steam_id", "psn_id", "created_at").
		Order("id ASC").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("读取规范游戏快照失败: %w", err)
	}
	return games, nil
}

func (r *gameRepository) GetByID(ctx context.Context, id uint64) (*model.CanonicalGame, error) {
	var g model.CanonicalGame
	return firstOrNil(r.db.WithContext(ctx).Where("id = ?", id), &g)
}

func (r *gameRepository) ListByIDs(ctx context.Context, ids []uint64) ([]*model.CanonicalGame, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var games []*model.CanonicalGame
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

func (r *gameRepository) FindByCatalogID(ctx context.Context, catalogID int64) (*model.CanonicalGame, error) {
	var g model.CanonicalGame
	return firstOrNil(r.db.WithContext(ctx).Where("catalog_id = ?", catalogID), &g)
}

func (r *gameRepository) FindUnverified(ctx context.Context, key string, platform model.PlatformType, externalID *string) (*model.CanonicalGame, error) {
	col := model.ExternalIDColumn(platform)
	if col == "" {
		return nil, fmt.Errorf("不支持的平台: %s", platform)
	}
	db := r.db.WithContext(ctx).Where("catalog_id IS NULL AND normalized_name = ?", key)
	if externalID == nil {
		// 优先取 uq_games_name_noext 下的行（所有外部ID均为空），其次是只缺本平台外部ID的行
		db = db.Where(col + " IS NULL").Order(noExternalIDFirst())
	} else {
		db = db.Where(col+" = ?", *externalID)
	}
	var g model.CanonicalGame
	return firstOrNil(db.Order("id ASC"), &g)
}

func (r *gameRepository) ListByExternalID(ctx context.Context, platform model.PlatformType, externalID string) ([]*model.CanonicalGame, error) {
	col := model.ExternalIDColumn(platform)
	if col == "" {
		return nil, fmt.Errorf("不支持的平台: %s", platform)
	}
	var games []*model.CanonicalGame
	if err := r.db.WithContext(ctx).Where(col+" = ?", externalID).Order("id ASC").Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

func (r *gameRepository) CreateBatch(ctx context.Context, games []*model.CanonicalGame) error {
	if len(games) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&games).Error
	})
}

func (r *gameRepository) CreateIgnoreConflict(ctx context.Context, game *model.CanonicalGame) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(game)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gameRepository) MarkNeedsVerification(ctx context.Context, id uint64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.CanonicalGame{}).
		Where("id = ? AND needs_verification = ?", id, false).
		Update("needs_verification", true)
	return res.RowsAffected > 0, res.Error
}

// Update 整行覆盖（含零值字段），不改 id 与 created_at
func (r *gameRepository) Update(ctx context.Context, game *model.CanonicalGame) error {
	res := r.db.WithContext(ctx).Model(game).Select("*").Omit("id", "created_at").Updates(game)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("规范游戏%d不存在", game.ID)
	}
	return nil
}

func (r *gameRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.CanonicalGame{}).Error
}

func noExternalIDFirst() string {
	conds := make([]string, 0, len(model.Platforms))
	for _, p := range model.Platforms {
		conds = append(conds, model.ExternalIDColumn(p)+" IS NULL")
	}
	return "CASE WHEN " + strings.Join(conds, " AND ") + " THEN 0 ELSE 1 END"
}

// firstOrNil 查询单行，不存在时返回 (nil, nil)
func firstOrNil[T any](db *gorm.DB, dest *T) (*T, error) {
	if err := db.First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return dest, nil
}
