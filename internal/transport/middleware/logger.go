package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)

		entry := logrus.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   duration,
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		})

		switch {
		case c.Writer.Status() >= 400:
			entry.Error("Request failed")
		case quietPaths[c.Request.URL.Path]:
			entry.Debug("Request processed")
		default:
			entry.Info("Request processed")
		}
	}
}
