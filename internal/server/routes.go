package server

import (
	"net/http"

	"github.com/danmuck/tetherctl/internal/observability"
	"github.com/gin-gonic/gin"
)

func (d *Debug) registerRoutes() {
	d.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "tetherctl",
			"version": d.version,
		})
	})

	d.router.GET("/status", func(c *gin.Context) {
		if d.status == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status unavailable"})
			return
		}
		c.JSON(http.StatusOK, d.status())
	})

	d.router.GET("/metrics", gin.WrapH(observability.Handler()))
}
