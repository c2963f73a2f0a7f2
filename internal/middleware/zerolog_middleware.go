package middleware

import (
	"strings"
	"time"

	"github.com/steveiliop56/tinyprovider/internal/metrics"
	"github.com/steveiliop56/tinyprovider/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

var (
	loggerSkipPathsPrefix = []string{
		"GET /api/health",
		"HEAD /api/health",
		"GET /metrics",
	}
)

type ZerologMiddleware struct {
	metrics *metrics.Metrics
}

func NewZerologMiddleware(metrics *metrics.Metrics) *ZerologMiddleware {
	return &ZerologMiddleware{
		metrics: metrics,
	}
}

func (m *ZerologMiddleware) Init() error {
	return nil
}

func (m *ZerologMiddleware) logPath(path string) bool {
	for _, prefix := range loggerSkipPathsPrefix {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

func (m *ZerologMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tStart := time.Now()

		c.Next()

		code := c.Writer.Status()
		address := c.Request.RemoteAddr
		clientIP := c.ClientIP()
		method := c.Request.Method
		path := c.Request.URL.Path

		elapsed := time.Since(tStart)
		latency := elapsed.String()

		// The route template keeps label cardinality bounded
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.metrics.ObserveRequest(method, route, code, elapsed)

		if !m.logPath(method + " " + path) {
			tlog.HTTP.Debug().Str("method", method).Str("path", path).Str("address", address).Int("status", code).Str("latency", latency).Msg("Request")
			return
		}

		switch {
		case code >= 200 && code < 300:
			tlog.HTTP.Info().Str("method", method).Str("path", path).Str("address", address).Str("clientIp", clientIP).Int("status", code).Str("latency", latency).Msg("Request")
		case code >= 300 && code < 400:
			tlog.HTTP.Warn().Str("method", method).Str("path", path).Str("address", address).Str("clientIp", clientIP).Int("status", code).Str("latency", latency).Msg("Request")
		default:
			tlog.HTTP.Error().Str("method", method).Str("path", path).Str("address", address).Str("clientIp", clientIP).Int("status", code).Str("latency", latency).Msg("Request")
		}
	}
}
