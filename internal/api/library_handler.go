package api

import (
	"errors"
	"net/http"
	"strconv"

	"GameSync/internal/model"
	"GameSync/internal/repository"
	"GameSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LibraryHandler 提供给前端的游戏库查询接口
type LibraryHandler struct {
	libraryService *service.LibraryService
	logger         *logrus.Logger
}

func NewLibraryHandler(db *gorm.DB, logger *logrus.Logger) *LibraryHandler {
	svc := service.NewLibraryService(repository.NewGameRepository(db), repository.NewOwnershipRepository(db), logger)
	return &LibraryHandler{
		libraryService: svc,
		logger:         logger,
	}
}

// ListLibrary 用户游戏库
// GET /api/users/:user_id/games?platform=steam&page=1&page_size=20
func (h *LibraryHandler) ListLibrary(c *gin.Context) {
	platform := model.PlatformType(c.DefaultQuery("platform", "steam"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.libraryService.ListLibrary(c.Request.Context(), c.Param("user_id"), platform, page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPlatform) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("ListLibrary failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
