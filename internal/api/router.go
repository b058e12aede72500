package api

import (
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 注册全部路由；pprof 便于调试和监测性能问题
func RegisterRoutes(r *gin.Engine, syncHandler *SyncHandler, libraryHandler *LibraryHandler) {
	pprof.Register(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/sync/platform/:platform", syncHandler.SyncPlatformHandler)
	r.GET("/sync/jobs/:job_id", syncHandler.GetJob)
	r.GET("/sync/users/:user_id/jobs", syncHandler.ListUserJobs)

	r.GET("/api/users/:user_id/games", libraryHandler.ListLibrary)
}
