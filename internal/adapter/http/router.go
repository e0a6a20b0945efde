package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aq2208/stockorder-api/internal/adapter/http/middleware"
	"github.com/aq2208/stockorder-api/internal/logging"
)

func NewRouter(h *OrderHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/orders", h.PlaceOrder)
		v1.GET("/orders/:id", h.GetOrderByID)
		v1.GET("/orders/:id/status", h.GetOrderStatus)
		v1.GET("/products/:id", h.GetProductByID)
	}

	return r
}
