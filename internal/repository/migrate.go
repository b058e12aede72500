package repository

import (
	"fmt"

	"GameSync/internal/model"

	"gorm.io/gorm"
)

// 部分唯一索引：gorm 标签无法表达 WHERE 条件，迁移时单独建立（Postgres 与 SQLite 语法一致）
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_games_catalog_id ON canonical_games (catalog_id) WHERE catalog_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_games_name_steam ON canonical_games (normalized_name, steam_id) WHERE catalog_id IS NULL AND steam_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_games_name_psn ON canonical_games (normalized_name, psn_id) WHERE catalog_id IS NULL AND psn_id IS NOT NULL`,
	// 无目录ID、无任何外部ID的行只按名称唯一
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_games_name_noext ON canonical_games (normalized_name) WHERE catalog_id IS NULL AND steam_id IS NULL AND psn_id IS NULL`,
}

// AutoMigrate 库表不存在则自动创建，并补齐部分唯一索引（幂等）
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.PlatformLink{},
		&model.CanonicalGame{},
		&model.Ownership{},
		&model.SyncJob{},
	); err != nil {
		return fmt.Errorf("数据库表结构迁移失败: %w", err)
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("创建部分唯一索引失败: %w", err)
		}
	}
	return nil
}
