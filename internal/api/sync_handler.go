package api

import (
	"errors"
	"net/http"
	"strconv"

	"GameSync/internal/model"
	"GameSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SyncHandler struct {
	worker  *service.Worker
	tracker *service.JobTracker
	logger  *logrus.Logger
}

func NewSyncHandler(worker *service.Worker, tracker *service.JobTracker, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		worker:  worker,
		tracker: tracker,
		logger:  logger,
	}
}

// SyncPlatformHandler 提交同步任务，立即返回任务文档
// POST /sync/platform/:platform?user_id=xxx
func (h *SyncHandler) SyncPlatformHandler(c *gin.Context) {
	platform := model.PlatformType(c.Param("platform"))
	userID := c.Query("user_id")
	if !platform.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的平台: " + platform.String()})
		return
	}
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	job, err := h.worker.Submit(c.Request.Context(), userID, platform)
	if err != nil {
		if errors.Is(err, service.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).WithField("platform", platform).Error("提交同步任务失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// GetJob GET /sync/jobs/:job_id
func (h *SyncHandler) GetJob(c *gin.Context) {
	job, err := h.tracker.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("GetJob failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListUserJobs GET /sync/users/:user_id/jobs?limit=20
func (h *SyncHandler) ListUserJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	jobs, err := h.tracker.ListByUser(c.Request.Context(), c.Param("user_id"), limit)
	if err != nil {
		h.logger.WithError(err).Error("ListUserJobs failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if jobs == nil {
		jobs = []*model.SyncJob{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
