package interfaces

import (
	"context"

	"GameSync/internal/config"
	"GameSync/internal/model"

	"github.com/sirupsen/logrus"
)

// PlatformCollector 所有平台采集器必须实现的核心接口
type PlatformCollector interface {
	GetType() model.PlatformType // 平台类型
	// FetchRecords 按平台原始顺序拉取用户的全部游戏记录；凭据来自 link
	FetchRecords(ctx context.Context, link *model.PlatformLink) ([]*model.RawPlatformRecord, error)
}

// Factory 平台采集器工厂函数签名
type Factory func(cfg *config.PlatformConfig, logger *logrus.Logger) PlatformCollector
