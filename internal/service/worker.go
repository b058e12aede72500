package service

import (
	"context"
	"errors"
	"fmt"

	"GameSync/internal/metrics"
	"GameSync/internal/model"

	"github.com/sirupsen/logrus"
)

// JobRunner 执行一次同步任务（Reconciler 实现）
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}

// Worker 进程内同步队列：单 goroutine 按入队顺序执行，挂在 suture 监督树下
type Worker struct {
	runner  JobRunner
	tracker *JobTracker
	queue   chan string
	logger  *logrus.Logger
}

func NewWorker(runner JobRunner, tracker *JobTracker, queueSize int, logger *logrus.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Worker{
		runner:  runner,
		tracker: tracker,
		queue:   make(chan string, queueSize),
		logger:  logger,
	}
}

// Submit 创建任务并入队；队列已满时任务直接记为失败并返回 ErrQueueFull
func (w *Worker) Submit(ctx context.Context, userID string, platform model.PlatformType) (*model.SyncJob, error) {
	job, err := w.tracker.Enqueue(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	select {
	case w.queue <- job.JobID:
		metrics.SyncQueueDepth.Set(float64(len(w.queue)))
		return job, nil
	default:
		if ferr := w.tracker.Fail(context.WithoutCancel(ctx), job.JobID, ErrQueueFull, model.JobCounters{}); ferr != nil {
			w.logger.WithError(ferr).WithField("job_id", job.JobID).Error("队列已满，写入任务失败状态失败")
		}
		return nil, fmt.Errorf("%w: job=%s", ErrQueueFull, job.JobID)
	}
}

// Serve 实现 suture.Service：ctx 结束时把仍在排队的任务记为失败后返回
func (w *Worker) Serve(ctx context.Context) error {
	w.logger.Info("同步队列已启动")
	for {
		if ctx.Err() != nil {
			w.drain()
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case jobID := <-w.queue:
			metrics.SyncQueueDepth.Set(float64(len(w.queue)))
			if err := w.runner.Run(ctx, jobID); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.WithError(err).WithField("job_id", jobID).Warn("同步任务执行失败")
			}
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case jobID := <-w.queue:
			if err := w.tracker.Fail(context.Background(), jobID, errors.New("服务关闭，任务未执行"), model.JobCounters{}); err != nil {
				w.logger.WithError(err).WithField("job_id", jobID).Warn("关闭时写入任务失败状态失败")
			}
		default:
			metrics.SyncQueueDepth.Set(0)
			return
		}
	}
}

func (w *Worker) String() string {
	return "sync-worker"
}
