package router

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/image-optimizer/internal/api/handlers/image"
	"github.com/aliskhannn/image-optimizer/internal/middleware"
)

func Setup(h *image.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	metrics := promhttp.Handler()
	r.GET("/metrics", func(c *ginext.Context) {
		metrics.ServeHTTP(c.Writer, c.Request)
	})

	api := r.Group("/api")

	api.POST("/optimize", h.Optimize)          // best-effort server-side optimize
	api.POST("/compress", h.Compress)          // adaptive compression
	api.POST("/convert", h.Convert)            // single format conversion
	api.POST("/convert/batch", h.ConvertBatch) // zipped batch conversion
	api.GET("/formats", h.Formats)             // format registry

	api.GET("/notifications", h.Notifications)
	api.POST("/notifications/read", h.MarkNotificationsRead)
	api.DELETE("/notifications", h.ClearNotifications)

	return r
}
