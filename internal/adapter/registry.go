package adapter

import (
	"fmt"
	"sort"

	"GameSync/internal/config"
	"GameSync/internal/interfaces"
	"GameSync/internal/model"

	"github.com/sirupsen/logrus"
)

// PlatformRegistry 按配置实例化的采集器集合，同步任务从这里取采集器
type PlatformRegistry struct {
	cfg        *config.Config
	logger     *logrus.Logger
	collectors map[model.PlatformType]interfaces.PlatformCollector
}

func NewPlatformRegistry(cfg *config.Config, logger *logrus.Logger) *PlatformRegistry {
	r := &PlatformRegistry{
		cfg:        cfg,
		logger:     logger,
		collectors: make(map[model.PlatformType]interfaces.PlatformCollector),
	}
	r.initCollectorsFromFactories()
	return r
}

// initCollectorsFromFactories 遍历配置中的平台，匹配工厂函数创建实例
func (r *PlatformRegistry) initCollectorsFromFactories() {
	r.logger.WithField("factory_platforms", ListFactories()).Debug("已注册的采集器工厂函数")

	for name, platformCfg := range r.cfg.Platforms {
		platformType := model.PlatformType(name)
		if !platformType.Valid() {
			r.logger.WithField("platform", name).Warn("配置中存在不支持的平台，已忽略")
			continue
		}

		factory, ok := GetFactory(platformType)
		if !ok {
			r.logger.WithField("platform", name).Error("未找到对应的工厂函数（init未注册？）")
			continue
		}

		pc := platformCfg
		collector := factory(&pc, r.logger)
		if collector == nil {
			r.logger.WithField("platform", name).Error("工厂函数返回nil采集器实例")
			continue
		}
		if collector.GetType() != platformType {
			r.logger.WithFields(logrus.Fields{
				"config_platform":    platformType,
				"collector_platform": collector.GetType(),
			}).Error("采集器平台类型与配置不匹配")
			continue
		}

		r.collectors[platformType] = collector
	}
	r.logger.WithField("platforms", r.ListRegisteredPlatforms()).Info("采集器初始化完成")
}

// Add 直接注册一个采集器实例（命令行导入文件、测试替身）
func (r *PlatformRegistry) Add(collector interfaces.PlatformCollector) {
	r.collectors[collector.GetType()] = collector
}

// ListRegisteredPlatforms 获取所有已初始化的平台类型列表
func (r *PlatformRegistry) ListRegisteredPlatforms() []model.PlatformType {
	platforms := make([]model.PlatformType, 0, len(r.collectors))
	for p := range r.collectors {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}

// GetCollector 获取采集器实例
func (r *PlatformRegistry) GetCollector(platform model.PlatformType) (interfaces.PlatformCollector, error) {
	collector, ok := r.collectors[platform]
	if !ok {
		return nil, fmt.Errorf("平台%s未初始化采集器（已初始化：%v）", platform, r.ListRegisteredPlatforms())
	}
	return collector, nil
}
