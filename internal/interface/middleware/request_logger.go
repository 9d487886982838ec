package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request. Level follows the status:
// >=500 error, >=400 warn, info otherwise. Headers and bodies are never logged.
func RequestLogger(log logrus.FieldLogger, skipPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		for _, p := range skipPaths {
			if strings.HasPrefix(path, p) {
				return
			}
		}

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          ClientIP(c),
			"request_id":  c.GetString(CtxRequestID),
			"bytes":       c.Writer.Size(),
		})
		if uid := UserID(c); uid != "" {
			entry = entry.WithField("user_id", uid)
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error(c.Request.Method + " " + path + " failed")
		case status >= http.StatusBadRequest:
			entry.Warn(c.Request.Method + " " + path + " failed")
		default:
			entry.Info(c.Request.Method + " " + path + " completed")
		}
	}
}
