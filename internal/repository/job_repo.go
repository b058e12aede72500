package repository

import (
	"context"

	"GameSync/internal/model"

	"gorm.io/gorm"
)

// JobRepository 同步任务仓储
type JobRepository interface {
	Create(ctx context.Context, job *model.SyncJob) error
	Get(ctx context.Context, jobID string) (*model.SyncJob, error)
	// Transition 仅当当前状态属于 from 时迁移到 to，返回是否迁移成功
	Transition(ctx context.Context, jobID string, from []model.JobStatus, to model.JobStatus, update JobUpdate) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.SyncJob, error)
}

// JobUpdate 迁移时一并写入的字段；nil 表示不修改
type JobUpdate struct {
	Error    *string
	Counters *model.JobCounters
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *model.SyncJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepository) Get(ctx context.Context, jobID string) (*model.SyncJob, error) {
	var job model.SyncJob
	return firstOrNil(r.db.WithContext(ctx).Where("job_id = ?", jobID), &job)
}

func (r *jobRepository) Transition(ctx context.Context, jobID string, from []model.JobStatus, to model.JobStatus, update JobUpdate) (bool, error) {
	values := map[string]interface{}{"status": to}
	if update.Error != nil {
		values["error"] = *update.Error
	}
	if c := update.Counters; c != nil {
		values["games_inserted"] = c.GamesInserted
		values["games_updated"] = c.GamesUpdated
		values["ownership_inserted"] = c.OwnershipInserted
		values["ownership_updated"] = c.OwnershipUpdated
	}
	res := r.db.WithContext(ctx).Model(&model.SyncJob{}).
		Where("job_id = ? AND status IN ?", jobID, from).
		Updates(values)
	return res.RowsAffected > 0, res.Error
}

func (r *jobRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.SyncJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var jobs []*model.SyncJob
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("job_id ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
