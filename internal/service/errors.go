package service

import "errors"

var (
	// ErrNilGameID 拥有关系缺少游戏ID，说明匹配/入库环节有缺陷；只放弃该条记录
	ErrNilGameID = errors.New("游戏ID为空")
	// ErrMergeInvariantViolation 合并前提不成立（持有者超过两条、拥有关系丢失），该次合并回滚并跳过
	ErrMergeInvariantViolation = errors.New("合并不变量被破坏")
	ErrInvalidTransition       = errors.New("非法的任务状态迁移")
	ErrInvalidPlatform         = errors.New("不支持的平台")
	ErrPlatformNotLinked       = errors.New("用户未绑定该平台")
	ErrMissingAPIKey           = errors.New("平台绑定缺少API Key")
	ErrJobNotFound             = errors.New("任务不存在")
	ErrQueueFull               = errors.New("同步队列已满")
	// ErrRunFatal 其余未处理的错误，整次同步失败
	ErrRunFatal = errors.New("同步任务失败")
)
