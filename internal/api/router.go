package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"popconn/internal/instrument"
)

// RegisterRoutes mounts the connectome endpoints on group
func RegisterRoutes(group *gin.RouterGroup, h *ConnectomeHandler) {
	group.POST("/connectome", h.BuildConnectome)
	group.POST("/compare", h.CompareGroups)
	group.GET("/metrics", h.ListMetrics)
}

// NewRouter builds the HTTP engine: the versioned API, a health probe and the
// Prometheus endpoint
func NewRouter(h *ConnectomeHandler, runMetrics *instrument.RunMetrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestCounter(runMetrics))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(runMetrics.Handler()))

	RegisterRoutes(router.Group("/api/v1"), h)
	return router
}

func requestCounter(runMetrics *instrument.RunMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		runMetrics.RequestServed(route, strconv.Itoa(c.Writer.Status()))
	}
}
