package model

// PlatformType 平台类型枚举
type PlatformType string

const (
	PlatformSteam PlatformType = "steam"
	PlatformPSN   PlatformType = "psn"
)

// Platforms 所有已支持的平台（合并时按此顺序补齐外部ID）
var Platforms = []PlatformType{PlatformSteam, PlatformPSN}

// Valid 是否为已支持的平台
func (p PlatformType) Valid() bool {
	for _, v := range Platforms {
		if v == p {
			return true
		}
	}
	return false
}

func (p PlatformType) String() string { return string(p) }

// JobStatus 同步任务状态
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusSuccess    JobStatus = "success"
	JobStatusFail       JobStatus = "fail"
)

// Terminal 终态不可再迁移
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFail
}
