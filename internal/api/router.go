package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handlers, jwtSecret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), MetricsMiddleware())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/login", h.Login)

	auth := api.Group("", AuthRequired(jwtSecret))
	{
		auth.POST("/scans", h.CreateScan)
		auth.GET("/sites", h.ListSites)
		auth.GET("/records", h.ListRecords)
		auth.GET("/stats", h.Stats)
		auth.GET("/ronda/status", h.RondaStatus)
	}

	admin := auth.Group("", RequireAdmin())
	{
		admin.POST("/sites", h.CreateSite)
		admin.PUT("/sites/:id", h.UpdateSite)
		admin.DELETE("/sites/:id", h.DeleteSite)
		admin.GET("/users", h.ListUsers)
		admin.POST("/users", h.CreateUser)
		admin.PUT("/users/:id/password", h.UpdateUserPassword)
		admin.GET("/config", h.ListConfig)
		admin.PUT("/config", h.UpdateConfig)
	}

	return r
}
