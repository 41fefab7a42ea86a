package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/ds124wfegd/alarmbridge/internal/notifier"
	"github.com/ds124wfegd/alarmbridge/internal/service"
	"github.com/ds124wfegd/alarmbridge/internal/transport/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Channel        string
	RequestTimeout int
	Gatherer       prometheus.Gatherer
	// Health reports whether the backing stores are reachable. Nil means
	// always healthy.
	Health func(ctx context.Context) error
}

// InitRoutes wires the HTTP surface. tray may be nil when the tray sink is
// not configured.
func InitRoutes(usecase service.AlarmUseCase, tray *notifier.Tray, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger())

	alarms := NewAlarmHandler(usecase, cfg.Channel)

	api := router.Group("/api/v1")
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	{
		api.POST("/channel/*channel", alarms.InvokeMethod)
		api.POST("/alarms", alarms.ScheduleAlarm)

		if tray != nil {
			trayHandler := NewTrayHandler(tray)
			api.GET("/notifications", trayHandler.GetNotifications)
			api.POST("/notifications/:slot/tap", trayHandler.TapNotification)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "unhealthy",
					"service":   "alarmbridge",
					"error":     err.Error(),
					"timestamp": time.Now().Format(time.RFC3339),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "alarmbridge",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	return router
}
