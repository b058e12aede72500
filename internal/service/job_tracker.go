package service

import (
	"context"
	"fmt"

	"GameSync/internal/model"
	"GameSync/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// JobTracker 同步任务状态机：queued → in_progress → success | fail
type JobTracker struct {
	repo   repository.JobRepository
	logger *logrus.Logger
}

func NewJobTracker(db *gorm.DB, logger *logrus.Logger) *JobTracker {
	return &JobTracker{
		repo:   repository.NewJobRepository(db),
		logger: logger,
	}
}

// Enqueue 创建 queued 任务
func (t *JobTracker) Enqueue(ctx context.Context, userID string, platform model.PlatformType) (*model.SyncJob, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPlatform, platform)
	}
	if userID == "" {
		return nil, fmt.Errorf("user_id不能为空")
	}
	job := &model.SyncJob{
		JobID:    uuid.New().String(),
		UserID:   userID,
		Platform: platform,
		Status:   model.JobStatusQueued,
	}
	if err := t.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("创建同步任务失败: %w", err)
	}
	t.logger.WithFields(logrus.Fields{
		"job_id":   job.JobID,
		"user_id":  userID,
		"platform": platform,
	}).Info("同步任务已入队")
	return job, nil
}

// Start queued → in_progress，返回最新的任务
func (t *JobTracker) Start(ctx context.Context, jobID string) (*model.SyncJob, error) {
	if err := t.transition(ctx, jobID, []model.JobStatus{model.JobStatusQueued}, model.JobStatusInProgress, repository.JobUpdate{}); err != nil {
		return nil, err
	}
	return t.Get(ctx, jobID)
}

// Succeed in_progress → success
func (t *JobTracker) Succeed(ctx context.Context, jobID string, counters model.JobCounters) error {
	return t.transition(ctx, jobID, []model.JobStatus{model.JobStatusInProgress}, model.JobStatusSuccess,
		repository.JobUpdate{Counters: &counters})
}

// Fail queued|in_progress → fail；已提交的部分结果保留
func (t *JobTracker) Fail(ctx context.Context, jobID string, cause error, counters model.JobCounters) error {
	msg := "未知错误"
	if cause != nil {
		msg = cause.Error()
	}
	return t.transition(ctx, jobID,
		[]model.JobStatus{model.JobStatusQueued, model.JobStatusInProgress}, model.JobStatusFail,
		repository.JobUpdate{Error: &msg, Counters: &counters})
}

func (t *JobTracker) Get(ctx context.Context, jobID string) (*model.SyncJob, error) {
	job, err := t.repo.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("查询同步任务失败: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// ListByUser 用户最近的任务，按创建时间倒序
func (t *JobTracker) ListByUser(ctx context.Context, userID string, limit int) ([]*model.SyncJob, error) {
	jobs, err := t.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("查询用户同步任务失败: %w", err)
	}
	return jobs, nil
}

func (t *JobTracker) transition(ctx context.Context, jobID string, from []model.JobStatus, to model.JobStatus, update repository.JobUpdate) error {
	ok, err := t.repo.Transition(ctx, jobID, from, to, update)
	if err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, jobID, to)
	}
	return nil
}
