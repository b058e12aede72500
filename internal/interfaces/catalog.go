package interfaces

import (
	"context"

	"GameSync/internal/model"
)

// CatalogLookup 规范游戏目录查询；未找到返回 (nil, nil)
type CatalogLookup interface {
	Lookup(ctx context.Context, name string, platform model.PlatformType, externalID *string) (*model.GameMetadata, error)
}
